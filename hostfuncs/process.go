package hostfuncs

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
)

// ProcessClass is the class of process handles.
const ProcessClass = "process.Process"

// Wait modes accepted by Process:wait in place of a timeout.
const (
	WaitInfinite = -1
	WaitDeadline = -2
)

// Stream identifiers accepted by Process:close_stream.
const (
	StreamStdin  = 0
	StreamStdout = 1
	StreamStderr = 2
)

// Redirect modes for the stdin, stdout and stderr start options.
const (
	RedirectDefault = 0
	RedirectPipe    = 1
	RedirectParent  = 2
	RedirectDiscard = 3
	RedirectStdout  = 4
)

// ProcessModule starts child processes and exposes their pipes.
var ProcessModule = OpenFunc(openProcess)

func openProcess(ns Namespace) error {
	ns.SetClass(ProcessClass, map[string]Func{
		"pid":          processPid,
		"running":      processRunning,
		"returncode":   processReturnCode,
		"wait":         processWait,
		"read_stdout":  processReadStdout,
		"read_stderr":  processReadStderr,
		"write":        processWrite,
		"close_stream": processCloseStream,
		"terminate":    processTerminate,
		"kill":         processKill,
	})
	ns.SetFunc("start", processStart)
	ns.SetValue("WAIT_INFINITE", WaitInfinite)
	ns.SetValue("WAIT_DEADLINE", WaitDeadline)
	ns.SetValue("STREAM_STDIN", StreamStdin)
	ns.SetValue("STREAM_STDOUT", StreamStdout)
	ns.SetValue("STREAM_STDERR", StreamStderr)
	ns.SetValue("REDIRECT_DEFAULT", RedirectDefault)
	ns.SetValue("REDIRECT_PIPE", RedirectPipe)
	ns.SetValue("REDIRECT_PARENT", RedirectParent)
	ns.SetValue("REDIRECT_DISCARD", RedirectDiscard)
	ns.SetValue("REDIRECT_STDOUT", RedirectStdout)
	return nil
}

// ProcessOptions configures a child process.
type ProcessOptions struct {
	Env     map[string]string
	Cwd     string
	Timeout time.Duration
	Stdin   int
	Stdout  int
	Stderr  int
}

// Process is a running or finished child process.
type Process struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *BoundedBuffer
	stderr   *BoundedBuffer
	done     chan struct{}
	deadline time.Time
	command  string
	mu       sync.Mutex
	exitCode int
}

// StartProcess starts argv with opts. Each stream keeps at most maxOutput
// unread bytes; output arriving while a stream is full is dropped.
func StartProcess(argv []string, opts ProcessOptions, maxOutput int) (*Process, error) {
	if len(argv) == 0 {
		return nil, &derrors.ExecError{Err: errors.New("command is required")}
	}

	//nolint:gosec // G204: Command execution is the purpose of this function
	cmd := exec.Command(argv[0], argv[1:]...)
	// Grandchildren holding the output pipes must not stall reaping.
	cmd.WaitDelay = time.Second
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	p := &Process{
		cmd:      cmd,
		command:  argv[0],
		done:     make(chan struct{}),
		exitCode: -1,
	}
	if opts.Timeout > 0 {
		p.deadline = time.Now().Add(opts.Timeout)
	}

	switch opts.Stdin {
	case RedirectParent:
		cmd.Stdin = os.Stdin
	case RedirectDiscard:
	default:
		in, err := cmd.StdinPipe()
		if err != nil {
			return nil, &derrors.ExecError{Command: p.command, Err: err}
		}
		p.stdin = in
	}

	p.stdout = NewBoundedBuffer(maxOutput)
	p.stderr = NewBoundedBuffer(maxOutput)
	switch opts.Stdout {
	case RedirectParent:
		cmd.Stdout = os.Stdout
	case RedirectDiscard:
	default:
		cmd.Stdout = p.stdout
	}
	switch opts.Stderr {
	case RedirectParent:
		cmd.Stderr = os.Stderr
	case RedirectDiscard:
	case RedirectStdout:
		cmd.Stderr = cmd.Stdout
	default:
		cmd.Stderr = p.stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, &derrors.ExecError{Command: p.command, Err: err}
	}

	go p.reap()
	return p, nil
}

func (p *Process) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Running reports whether the process has not exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ReturnCode returns the exit code, or false when still running.
func (p *Process) ReturnCode() (int, bool) {
	if p.Running() {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, true
}

// Wait blocks until the process exits and returns its exit code. A
// timeout of WaitInfinite waits forever and WaitDeadline waits until the
// deadline given at start, if any. An elapsed timeout returns a
// *derrors.TimeoutError and an ended ctx returns ctx.Err().
func (p *Process) Wait(ctx context.Context, timeout time.Duration) (int, error) {
	var expired <-chan time.Time
	switch {
	case timeout == WaitDeadline:
		if !p.deadline.IsZero() {
			timeout = time.Until(p.deadline)
			t := time.NewTimer(timeout)
			defer t.Stop()
			expired = t.C
		}
	case timeout >= 0:
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-p.done:
	case <-expired:
		return 0, &derrors.TimeoutError{Operation: "process wait", Target: p.command, Duration: timeout}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	code, _ := p.ReturnCode()
	return code, nil
}

// Terminate asks the process to exit.
func (p *Process) Terminate() error {
	if !p.Running() {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill stops the process immediately.
func (p *Process) Kill() error {
	if !p.Running() {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Close kills the process if it is still running and waits for it to be
// reaped.
func (p *Process) Close() error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}

// Write sends data to the process stdin.
func (p *Process) Write(data []byte) (int, error) {
	if p.stdin == nil {
		return 0, &derrors.ExecError{Command: p.command, Err: errors.New("stdin is not redirected")}
	}
	return p.stdin.Write(data)
}

// CloseStdin closes the process stdin.
func (p *Process) CloseStdin() error {
	if p.stdin == nil {
		return nil
	}
	return p.stdin.Close()
}

func processStart(ctx context.Context, args Args) ([]any, error) {
	var argv []string
	switch v := args.Get(1).(type) {
	case string:
		argv = []string{v}
	case []any:
		for i := range v {
			s, err := NewArgs(args.Func, v[i]).String(1)
			if err != nil {
				return nil, &ArgError{Func: args.Func, Index: 1, Expected: "command arguments must be strings"}
			}
			argv = append(argv, s)
		}
	default:
		return nil, args.argError(1, "table")
	}
	if len(argv) == 0 {
		return nil, &ArgError{Func: args.Func, Index: 1, Expected: "command is empty"}
	}

	raw, err := args.OptMap(2)
	if err != nil {
		return nil, err
	}
	opts, err := parseProcessOptions(args.Func, raw)
	if err != nil {
		return nil, err
	}

	p, err := StartProcess(argv, opts, LimitsFrom(ctx).MaxOutputSize)
	if err != nil {
		return nil, err
	}
	forget := ResourcesFrom(ctx).Track(p)
	go func() {
		<-p.done
		forget()
	}()
	return []any{Object{Class: ProcessClass, Value: p}}, nil
}

func parseProcessOptions(fn string, raw map[string]any) (ProcessOptions, error) {
	var opts ProcessOptions
	o := NewArgs(fn, raw["cwd"], raw["timeout"], raw["stdin"], raw["stdout"], raw["stderr"])
	var err error
	if opts.Cwd, err = o.OptString(1, ""); err != nil {
		return opts, err
	}
	secs, err := o.OptNumber(2, 0)
	if err != nil {
		return opts, err
	}
	opts.Timeout = time.Duration(secs * float64(time.Second))
	if opts.Stdin, err = o.OptInt(3, RedirectDefault); err != nil {
		return opts, err
	}
	if opts.Stdout, err = o.OptInt(4, RedirectDefault); err != nil {
		return opts, err
	}
	if opts.Stderr, err = o.OptInt(5, RedirectDefault); err != nil {
		return opts, err
	}
	if env, ok := raw["env"].(map[string]any); ok {
		opts.Env = make(map[string]string, len(env))
		for k, v := range env {
			s, err := NewArgs(fn, v).String(1)
			if err != nil {
				return opts, &ArgError{Func: fn, Index: 2, Expected: "environment values must be strings"}
			}
			opts.Env[k] = s
		}
	}
	return opts, nil
}

func processPid(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	return []any{p.Pid()}, nil
}

func processRunning(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	return []any{p.Running()}, nil
}

func processReturnCode(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	if code, ok := p.ReturnCode(); ok {
		return []any{code}, nil
	}
	return []any{nil}, nil
}

func processWait(ctx context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	ms, err := args.OptInt(2, WaitInfinite)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(ms)
	if ms >= 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	code, err := p.Wait(ctx, timeout)
	if err != nil {
		return []any{nil}, nil
	}
	return []any{code}, nil
}

func processReadStdout(_ context.Context, args Args) ([]any, error) {
	return readStream(args, func(p *Process) *BoundedBuffer { return p.stdout })
}

func processReadStderr(_ context.Context, args Args) ([]any, error) {
	return readStream(args, func(p *Process) *BoundedBuffer { return p.stderr })
}

// readStream returns the unread output of a stream. Once the process has
// exited and the stream is drained, nil is returned.
func readStream(args Args, pick func(*Process) *BoundedBuffer) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	n, err := args.OptInt(2, 2048)
	if err != nil {
		return nil, err
	}
	running := p.Running()
	data := pick(p).Next(n)
	if len(data) == 0 && !running {
		return []any{nil}, nil
	}
	return []any{string(data)}, nil
}

func processWrite(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	data, err := args.String(2)
	if err != nil {
		return nil, err
	}
	n, err := p.Write([]byte(data))
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{n}, nil
}

func processCloseStream(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	stream, err := args.Int(2)
	if err != nil {
		return nil, err
	}
	if stream == StreamStdin {
		if err := p.CloseStdin(); err != nil {
			return []any{false, err.Error()}, nil
		}
	}
	return []any{true}, nil
}

func processTerminate(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	if err := p.Terminate(); err != nil {
		return []any{false, err.Error()}, nil
	}
	return []any{true}, nil
}

func processKill(_ context.Context, args Args) ([]any, error) {
	p, err := Self[*Process](args, ProcessClass)
	if err != nil {
		return nil, err
	}
	if err := p.Kill(); err != nil {
		return []any{false, err.Error()}, nil
	}
	return []any{true}, nil
}
