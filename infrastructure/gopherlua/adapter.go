// Package gopherlua binds native modules into a yuin/gopher-lua (Lua 5.1)
// interpreter. It is the alternate backend and pairs with the compat53
// variant tail.
package gopherlua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// BackendName identifies this backend.
const BackendName = "gopher-lua"

const loadedKey = "_LOADED"

// ErrClosed is returned by calls on a closed runtime.
var ErrClosed = errors.New("interpreter is closed")

// Config holds configuration for the gopher-lua runtime.
type Config struct {
	Logger      *slog.Logger
	Forker      func() (hostfuncs.Interpreter, error)
	SearchPaths []string
	Middleware  []hostfuncs.Middleware
}

// Option configures the runtime.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithSearchPaths adds Lua module search patterns such as "data/?.lua".
func WithSearchPaths(paths ...string) Option {
	return func(c *Config) {
		c.SearchPaths = append(c.SearchPaths, paths...)
	}
}

// WithMiddleware adds native function middleware.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(c *Config) {
		c.Middleware = append(c.Middleware, mw...)
	}
}

// WithForker sets the constructor used by Namespace.Fork.
func WithForker(f func() (hostfuncs.Interpreter, error)) Option {
	return func(c *Config) {
		c.Forker = f
	}
}

// Runtime is a gopher-lua state implementing hostfuncs.Runtime.
type Runtime struct {
	ctx        context.Context
	l          *lua.LState
	logger     *slog.Logger
	forker     func() (hostfuncs.Interpreter, error)
	middleware []hostfuncs.Middleware
	mu         sync.Mutex
	closed     bool
}

var _ hostfuncs.Runtime = (*Runtime)(nil)

// New creates a state with the standard libraries opened. Script execution
// is cancelled when ctx is done.
func New(ctx context.Context, opts ...Option) *Runtime {
	cfg := Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	l := lua.NewState()
	l.SetContext(ctx)

	r := &Runtime{
		ctx:        ctx,
		l:          l,
		logger:     cfg.Logger,
		forker:     cfg.Forker,
		middleware: append([]hostfuncs.Middleware{hostfuncs.PanicRecoveryMiddleware()}, cfg.Middleware...),
	}
	if len(cfg.SearchPaths) > 0 {
		pkg := l.GetGlobal("package")
		joined := strings.Join(cfg.SearchPaths, ";")
		if current := lua.LVAsString(l.GetField(pkg, "path")); current != "" {
			joined += ";" + current
		}
		l.SetField(pkg, "path", lua.LString(joined))
	}
	return r
}

// Backend implements hostfuncs.Runtime.
func (r *Runtime) Backend() string {
	return BackendName
}

func (r *Runtime) loaded() *lua.LTable {
	reg := r.l.Get(lua.RegistryIndex)
	if tb, ok := r.l.GetField(reg, loadedKey).(*lua.LTable); ok {
		return tb
	}
	tb := r.l.NewTable()
	r.l.SetField(reg, loadedKey, tb)
	return tb
}

// Loaded implements hostfuncs.Runtime.
func (r *Runtime) Loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	return r.loaded().RawGetString(name) != lua.LNil
}

// Require implements hostfuncs.Runtime.
func (r *Runtime) Require(name string, entry hostfuncs.EntryPoint, global bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrClosed
	}
	if entry == nil {
		return false, fmt.Errorf("%w: %q", hostfuncs.ErrNilEntryPoint, name)
	}

	loaded := r.loaded()
	if loaded.RawGetString(name) != lua.LNil {
		r.logger.Debug("native module already loaded", "module", name)
		return false, nil
	}

	l := r.l
	table := l.NewTable()
	var openErr error
	open := l.NewFunction(func(l *lua.LState) int {
		defer func() {
			if p := recover(); p != nil {
				openErr = hostfuncs.NewPanicError(name, p)
			}
		}()
		openErr = entry.Open(&namespace{rt: r, name: name, table: table})
		return 0
	})
	err := l.CallByParam(lua.P{Fn: open, NRet: 0, Protect: true}, table)
	if openErr != nil {
		return false, openErr
	}
	if err != nil {
		return false, &derrors.ScriptError{Chunk: name, Err: errors.New(errorMessage(err))}
	}

	loaded.RawSetString(name, table)
	if global {
		l.SetGlobal(name, table)
	}
	r.logger.Debug("native module bound", "module", name, "global", global)
	return true, nil
}

// DoString implements hostfuncs.Interpreter.
func (r *Runtime) DoString(chunk string, args ...any) ([]any, error) {
	return r.run("chunk", func() (*lua.LFunction, error) { return r.l.LoadString(chunk) }, args)
}

// DoFile implements hostfuncs.Runtime.
func (r *Runtime) DoFile(path string, args ...any) ([]any, error) {
	return r.run(path, func() (*lua.LFunction, error) { return r.l.LoadFile(path) }, args)
}

func (r *Runtime) run(chunkName string, load func() (*lua.LFunction, error), args []any) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	fn, err := load()
	if err != nil {
		return nil, &derrors.ScriptError{Chunk: chunkName, Err: errors.New(errorMessage(err))}
	}
	return r.call(chunkName, fn, args)
}

// call invokes fn in protected mode and converts every result.
func (r *Runtime) call(where string, fn lua.LValue, args []any) ([]any, error) {
	l := r.l
	in := make([]lua.LValue, len(args))
	for i, a := range args {
		v, err := r.toLua(a, where)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}

	top := l.GetTop()
	defer l.SetTop(top)
	if err := l.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, in...); err != nil {
		return nil, &derrors.ScriptError{Chunk: where, Err: errors.New(errorMessage(err))}
	}
	out := make([]any, 0, l.GetTop()-top)
	for i := top + 1; i <= l.GetTop(); i++ {
		v, err := r.toGo(l.Get(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close releases the state.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.l.Close()
	}
	return nil
}

// errorMessage drops the stack trace gopher-lua appends to runtime errors.
func errorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// wrap adapts a native function to a gopher-lua function named qualified.
func (r *Runtime) wrap(qualified string, fn hostfuncs.Func) *lua.LFunction {
	chained := hostfuncs.Chain(fn, r.middleware...)
	return r.l.NewFunction(func(l *lua.LState) int {
		values := make([]any, l.GetTop())
		for i := range values {
			v, err := r.toGo(l.Get(i + 1))
			if err != nil {
				l.RaiseError("%s", err.Error())
			}
			values[i] = v
		}
		ctx := hostfuncs.NewHostContext(r.ctx, qualified)
		out, err := chained(ctx, hostfuncs.Args{Func: qualified, Values: values})
		if err != nil {
			l.RaiseError("%s", err.Error())
		}
		for _, v := range out {
			lv, err := r.toLua(v, qualified)
			if err != nil {
				l.RaiseError("%s", err.Error())
			}
			l.Push(lv)
		}
		return len(out)
	})
}

type namespace struct {
	rt    *Runtime
	table *lua.LTable
	name  string
}

func (ns *namespace) Name() string {
	return ns.name
}

func (ns *namespace) Context() context.Context {
	return ns.rt.ctx
}

func (ns *namespace) SetFunc(name string, fn hostfuncs.Func) {
	ns.table.RawSetString(name, ns.rt.wrap(ns.name+"."+name, fn))
}

func (ns *namespace) SetValue(name string, value any) {
	v, err := ns.rt.toLua(value, ns.name+"."+name)
	if err != nil {
		ns.rt.l.RaiseError("%s", err.Error())
	}
	ns.table.RawSetString(name, v)
}

func (ns *namespace) SetClass(class string, methods map[string]hostfuncs.Func) {
	l := ns.rt.l
	mt := l.NewTypeMetatable(class)
	index := l.CreateTable(0, len(methods))
	for _, m := range sortedKeys(methods) {
		index.RawSetString(m, ns.rt.wrap(class+":"+m, methods[m]))
	}
	mt.RawSetString("__index", index)
	mt.RawSetString("__name", lua.LString(class))
}

func (ns *namespace) Eval(chunk string) error {
	fn, err := ns.rt.l.LoadString(chunk)
	if err != nil {
		return &derrors.ScriptError{Chunk: ns.name, Err: errors.New(errorMessage(err))}
	}
	if err := ns.rt.l.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ns.table); err != nil {
		return &derrors.ScriptError{Chunk: ns.name, Err: errors.New(errorMessage(err))}
	}
	return nil
}

func (ns *namespace) Fork() (hostfuncs.Interpreter, error) {
	if ns.rt.forker == nil {
		return nil, errors.New("interpreter forking is not configured")
	}
	return ns.rt.forker()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
