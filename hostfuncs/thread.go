package hostfuncs

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/wireformat"
)

// Thread classes.
const (
	ThreadClass  = "thread.Thread"
	ChannelClass = "thread.Channel"
)

// ThreadModule runs Lua chunks on worker goroutines, each inside its own
// interpreter, and exchanges values through named channels shared by the
// whole process.
var ThreadModule = OpenFunc(openThread)

// ErrTooManyThreads is returned when the thread limit is reached.
var ErrTooManyThreads = errors.New("too many running threads")

// Thread is a worker running a chunk in a forked interpreter.
type Thread struct {
	result wireformat.ThreadResultWire
	done   chan struct{}
	id     string
	name   string
}

// ID returns the unique id of the thread.
func (t *Thread) ID() string {
	return t.id
}

// Name returns the name given at creation.
func (t *Thread) Name() string {
	return t.name
}

// Running reports whether the chunk is still executing.
func (t *Thread) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the thread finishes and returns its results. A
// negative timeout waits forever. An elapsed timeout returns a
// *derrors.TimeoutError and an ended ctx returns ctx.Err(); both leave the
// thread running. Any other error was raised by the chunk.
func (t *Thread) Wait(ctx context.Context, timeout time.Duration) ([]any, error) {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-t.done:
	case <-expired:
		return nil, &derrors.TimeoutError{Operation: "thread wait", Target: t.name, Duration: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if t.result.Error != nil {
		return nil, t.result.Error
	}
	return wireformat.ToValues(t.result.Values)
}

// threadPool bounds the number of workers started from one interpreter.
type threadPool struct {
	ns      Namespace
	mu      sync.Mutex
	running int
}

func (p *threadPool) acquire(limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limit > 0 && p.running >= limit {
		return false
	}
	p.running++
	return true
}

func (p *threadPool) release() {
	p.mu.Lock()
	p.running--
	p.mu.Unlock()
}

// Start runs chunk with args in a new interpreter.
func (p *threadPool) Start(ctx context.Context, name, chunk string, args []any) (*Thread, error) {
	wargs, err := wireformat.FromValues(args)
	if err != nil {
		return nil, err
	}
	if !p.acquire(LimitsFrom(ctx).MaxThreads) {
		return nil, ErrTooManyThreads
	}
	interp, err := p.ns.Fork()
	if err != nil {
		p.release()
		return nil, err
	}

	t := &Thread{id: uuid.NewString(), name: name, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer p.release()
		defer func() { _ = interp.Close() }()
		defer func() {
			if r := recover(); r != nil {
				t.result = wireformat.ThreadResultWire{Error: wireformat.FromError(NewPanicError(name, r))}
			}
		}()

		in, err := wireformat.ToValues(wargs)
		if err != nil {
			t.result.Error = wireformat.FromError(err)
			return
		}
		out, err := interp.DoString(chunk, in...)
		if err != nil {
			t.result.Error = wireformat.FromError(err)
			return
		}
		values, err := wireformat.FromValues(out)
		if err != nil {
			t.result.Error = wireformat.FromError(err)
			return
		}
		t.result.Values = values
	}()
	return t, nil
}

func openThread(ns Namespace) error {
	pool := &threadPool{ns: ns}

	ns.SetClass(ThreadClass, map[string]Func{
		"get_id":     threadGetID,
		"get_name":   threadGetName,
		"is_running": threadIsRunning,
		"wait":       threadWait,
	})
	ns.SetClass(ChannelClass, map[string]Func{
		"get_name": channelGetName,
		"push":     channelPush,
		"first":    channelFirst,
		"last":     channelLast,
		"pop":      channelPop,
		"wait":     channelWait,
		"clear":    channelClear,
		"size":     channelSize,
	})
	ns.SetFunc("create", func(ctx context.Context, args Args) ([]any, error) {
		name, err := args.String(1)
		if err != nil {
			return nil, err
		}
		chunk, err := args.String(2)
		if err != nil {
			return nil, err
		}
		t, err := pool.Start(ctx, name, chunk, args.Rest(3))
		if err != nil {
			return []any{nil, err.Error()}, nil
		}
		return []any{Object{Class: ThreadClass, Value: t}}, nil
	})
	ns.SetFunc("get_channel", threadGetChannel)
	ns.SetFunc("get_cpu_count", func(context.Context, Args) ([]any, error) {
		return []any{runtime.NumCPU()}, nil
	})
	return nil
}

func threadGetID(_ context.Context, args Args) ([]any, error) {
	t, err := Self[*Thread](args, ThreadClass)
	if err != nil {
		return nil, err
	}
	return []any{t.ID()}, nil
}

func threadGetName(_ context.Context, args Args) ([]any, error) {
	t, err := Self[*Thread](args, ThreadClass)
	if err != nil {
		return nil, err
	}
	return []any{t.Name()}, nil
}

func threadIsRunning(_ context.Context, args Args) ([]any, error) {
	t, err := Self[*Thread](args, ThreadClass)
	if err != nil {
		return nil, err
	}
	return []any{t.Running()}, nil
}

// threadWait returns the values the chunk returned, or nil and a message
// when it failed. It returns nothing when the timeout elapses first.
func threadWait(ctx context.Context, args Args) ([]any, error) {
	t, err := Self[*Thread](args, ThreadClass)
	if err != nil {
		return nil, err
	}
	timeout, err := timeoutArg(args, 2)
	if err != nil {
		return nil, err
	}
	values, err := t.Wait(ctx, timeout)
	var timeoutErr *derrors.TimeoutError
	if errors.As(err, &timeoutErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	return values, nil
}

// timeoutArg reads an optional millisecond timeout; absent or negative
// values mean no timeout.
func timeoutArg(args Args, n int) (time.Duration, error) {
	ms, err := args.OptInt(n, -1)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return -1, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Channel is a named FIFO queue shared by every interpreter in the process.
// Values are stored in wire form so no interpreter can observe another's
// tables.
type Channel struct {
	name   string
	items  []wireformat.ValueWire
	signal chan struct{}
	mu     sync.Mutex
}

var channels = struct {
	m  map[string]*Channel
	mu sync.Mutex
}{m: make(map[string]*Channel)}

// GetChannel returns the process-wide channel called name, creating it on
// first use.
func GetChannel(name string) *Channel {
	channels.mu.Lock()
	defer channels.mu.Unlock()
	c, ok := channels.m[name]
	if !ok {
		c = &Channel{name: name, signal: make(chan struct{})}
		channels.m[name] = c
	}
	return c
}

// Push appends v to the channel and wakes waiters.
func (c *Channel) Push(v any) error {
	w, err := wireformat.FromValue(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = append(c.items, w)
	close(c.signal)
	c.signal = make(chan struct{})
	c.mu.Unlock()
	return nil
}

// First returns the oldest value without removing it.
func (c *Channel) First() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return nil, false
	}
	v, err := c.items[0].ToValue()
	return v, err == nil
}

// Last returns the newest value without removing it.
func (c *Channel) Last() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return nil, false
	}
	v, err := c.items[len(c.items)-1].ToValue()
	return v, err == nil
}

// Pop removes the oldest value.
func (c *Channel) Pop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) > 0 {
		c.items = c.items[1:]
	}
}

// Clear removes every value.
func (c *Channel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Len returns the number of queued values.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Wait blocks until the channel holds a value and returns the oldest one
// without removing it. A negative timeout waits forever.
func (c *Channel) Wait(ctx context.Context, timeout time.Duration) (any, bool) {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		c.mu.Lock()
		if len(c.items) > 0 {
			v, err := c.items[0].ToValue()
			c.mu.Unlock()
			return v, err == nil
		}
		signal := c.signal
		c.mu.Unlock()

		select {
		case <-signal:
		case <-expired:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

func threadGetChannel(_ context.Context, args Args) ([]any, error) {
	name, err := args.String(1)
	if err != nil {
		return nil, err
	}
	return []any{Object{Class: ChannelClass, Value: GetChannel(name)}}, nil
}

func channelGetName(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	return []any{c.name}, nil
}

func channelPush(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	if err := c.Push(args.Get(2)); err != nil {
		return nil, err
	}
	return nil, nil
}

func channelFirst(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	v, _ := c.First()
	return []any{v}, nil
}

func channelLast(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	v, _ := c.Last()
	return []any{v}, nil
}

func channelPop(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	c.Pop()
	return nil, nil
}

func channelWait(ctx context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	timeout, err := timeoutArg(args, 2)
	if err != nil {
		return nil, err
	}
	v, _ := c.Wait(ctx, timeout)
	return []any{v}, nil
}

func channelClear(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	c.Clear()
	return nil, nil
}

func channelSize(_ context.Context, args Args) ([]any, error) {
	c, err := Self[*Channel](args, ChannelClass)
	if err != nil {
		return nil, err
	}
	return []any{c.Len()}, nil
}
