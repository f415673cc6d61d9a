// Package golua binds native modules into a Shopify/go-lua (Lua 5.2)
// interpreter.
package golua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// BackendName identifies this backend.
const BackendName = "go-lua"

// registry keys
const (
	loadedKey  = "_LOADED"
	anchorsKey = "pragtical.anchors"
)

// ErrClosed is returned by calls on a closed runtime.
var ErrClosed = errors.New("interpreter is closed")

// Config holds configuration for the go-lua runtime.
type Config struct {
	// Logger receives debug output about module binding.
	Logger *slog.Logger

	// Forker creates sibling interpreters for Namespace.Fork.
	Forker func() (hostfuncs.Interpreter, error)

	// SearchPaths are prepended to package.path.
	SearchPaths []string

	// Middleware wraps every native function, after panic recovery.
	Middleware []hostfuncs.Middleware
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

func defaultConfig() Config {
	return Config{Logger: slog.Default()}
}

// Runtime is a go-lua state implementing hostfuncs.Runtime. It is not safe
// for concurrent use; DoString, DoFile and Require serialize on a mutex.
type Runtime struct {
	ctx        context.Context
	l          *lua.State
	logger     *slog.Logger
	forker     func() (hostfuncs.Interpreter, error)
	middleware []hostfuncs.Middleware
	anchors    []int
	nextAnchor int
	mu         sync.Mutex
	closed     bool
}

var _ hostfuncs.Runtime = (*Runtime)(nil)

// New creates a state with the standard libraries opened.
func New(ctx context.Context, opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	l := lua.NewState()
	lua.OpenLibraries(l)

	r := &Runtime{
		ctx:    ctx,
		l:      l,
		logger: cfg.Logger,
		forker: cfg.Forker,
		// Panic recovery is always the outermost layer.
		middleware: append([]hostfuncs.Middleware{hostfuncs.PanicRecoveryMiddleware()}, cfg.Middleware...),
	}
	if len(cfg.SearchPaths) > 0 {
		r.prependSearchPaths(cfg.SearchPaths)
	}
	return r
}

func (r *Runtime) prependSearchPaths(paths []string) {
	l := r.l
	l.Global("package")
	l.Field(-1, "path")
	current, _ := l.ToString(-1)
	l.Pop(1)
	joined := strings.Join(paths, ";")
	if current != "" {
		joined += ";" + current
	}
	l.PushString(joined)
	l.SetField(-2, "path")
	l.Pop(1)
}

// Backend implements hostfuncs.Runtime.
func (r *Runtime) Backend() string {
	return BackendName
}

// Loaded implements hostfuncs.Runtime.
func (r *Runtime) Loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	l := r.l
	top := l.Top()
	defer l.SetTop(top)
	lua.SubTable(l, lua.RegistryIndex, loadedKey)
	l.Field(-1, name)
	return !l.IsNil(-1)
}

// Require implements hostfuncs.Runtime. The entry point runs inside a
// protected call with the fresh module table as its only argument, the
// same way luaL_requiref invokes an open function.
func (r *Runtime) Require(name string, entry hostfuncs.EntryPoint, global bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrClosed
	}
	if entry == nil {
		return false, fmt.Errorf("%w: %q", hostfuncs.ErrNilEntryPoint, name)
	}

	l := r.l
	top := l.Top()
	defer l.SetTop(top)

	lua.SubTable(l, lua.RegistryIndex, loadedKey)
	loaded := l.AbsIndex(-1)
	l.Field(loaded, name)
	if !l.IsNil(-1) {
		r.logger.Debug("native module already loaded", "module", name)
		return false, nil
	}
	l.Pop(1)

	l.NewTable()
	table := l.AbsIndex(-1)

	var openErr error
	l.PushGoFunction(func(l *lua.State) int {
		defer func() {
			if p := recover(); p != nil {
				openErr = hostfuncs.NewPanicError(name, p)
			}
		}()
		ns := &namespace{rt: r, name: name, table: 1}
		openErr = entry.Open(ns)
		return 0
	})
	l.PushValue(table)
	if err := l.ProtectedCall(1, 0, 0); err != nil {
		if openErr != nil {
			return false, openErr
		}
		return false, &derrors.ScriptError{Chunk: name, Err: errors.New(stackMessage(l, err))}
	}
	if openErr != nil {
		return false, openErr
	}

	l.PushValue(table)
	l.SetField(loaded, name)
	if global {
		l.PushValue(table)
		l.SetGlobal(name)
	}
	r.logger.Debug("native module bound", "module", name, "global", global)
	return true, nil
}

// DoString implements hostfuncs.Interpreter.
func (r *Runtime) DoString(chunk string, args ...any) ([]any, error) {
	return r.run("chunk", func(l *lua.State) error { return lua.LoadString(l, chunk) }, args)
}

// DoFile implements hostfuncs.Runtime.
func (r *Runtime) DoFile(path string, args ...any) ([]any, error) {
	return r.run(path, func(l *lua.State) error { return lua.LoadFile(l, path, "") }, args)
}

func (r *Runtime) run(chunkName string, load func(l *lua.State) error, args []any) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	l := r.l
	top := l.Top()
	defer l.SetTop(top)

	if err := load(l); err != nil {
		return nil, &derrors.ScriptError{Chunk: chunkName, Err: errors.New(stackMessage(l, err))}
	}
	for _, a := range args {
		if err := r.push(a, ""); err != nil {
			return nil, err
		}
	}
	if err := l.ProtectedCall(len(args), lua.MultipleReturns, 0); err != nil {
		return nil, &derrors.ScriptError{Chunk: chunkName, Err: errors.New(stackMessage(l, err))}
	}
	defer r.releaseAnchors()
	out := make([]any, 0, l.Top()-top)
	for i := top + 1; i <= l.Top(); i++ {
		v, err := r.toGo(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close marks the runtime closed. go-lua states are reclaimed by the
// garbage collector.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// stackMessage returns the error value left on the stack by a failed load or
// call, falling back to err.
func stackMessage(l *lua.State, err error) string {
	if l.Top() > 0 {
		if msg, ok := l.ToString(-1); ok {
			return msg
		}
	}
	return err.Error()
}

// wrap adapts a native function to a go-lua function named qualified.
func (r *Runtime) wrap(qualified string, fn hostfuncs.Func) lua.Function {
	chained := hostfuncs.Chain(fn, r.middleware...)
	return func(l *lua.State) int {
		mark := len(r.anchors)
		values := make([]any, l.Top())
		for i := range values {
			v, err := r.toGo(i + 1)
			if err != nil {
				r.dropAnchors(mark)
				lua.Errorf(l, "%s", err.Error())
			}
			values[i] = v
		}
		ctx := hostfuncs.NewHostContext(r.ctx, qualified)
		out, err := chained(ctx, hostfuncs.Args{Func: qualified, Values: values})
		r.dropAnchors(mark)
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		for _, v := range out {
			if err := r.push(v, qualified); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
		}
		return len(out)
	}
}

// namespace implements hostfuncs.Namespace over the module table at a
// stack index of the open function frame.
type namespace struct {
	rt    *Runtime
	name  string
	table int
}

func (ns *namespace) Name() string {
	return ns.name
}

func (ns *namespace) Context() context.Context {
	return ns.rt.ctx
}

func (ns *namespace) SetFunc(name string, fn hostfuncs.Func) {
	l := ns.rt.l
	l.PushGoFunction(ns.rt.wrap(ns.name+"."+name, fn))
	l.SetField(ns.table, name)
}

func (ns *namespace) SetValue(name string, value any) {
	l := ns.rt.l
	if err := ns.rt.push(value, ns.name+"."+name); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	l.SetField(ns.table, name)
}

func (ns *namespace) SetClass(class string, methods map[string]hostfuncs.Func) {
	l := ns.rt.l
	lua.NewMetaTable(l, class)
	l.CreateTable(0, len(methods))
	for _, m := range sortedKeys(methods) {
		l.PushGoFunction(ns.rt.wrap(class+":"+m, methods[m]))
		l.SetField(-2, m)
	}
	l.SetField(-2, "__index")
	l.PushString(class)
	l.SetField(-2, "__name")
	l.Pop(1)
}

func (ns *namespace) Eval(chunk string) error {
	l := ns.rt.l
	top := l.Top()
	defer l.SetTop(top)
	if err := lua.LoadString(l, chunk); err != nil {
		return &derrors.ScriptError{Chunk: ns.name, Err: errors.New(stackMessage(l, err))}
	}
	l.PushValue(ns.table)
	if err := l.ProtectedCall(1, 0, 0); err != nil {
		return &derrors.ScriptError{Chunk: ns.name, Err: errors.New(stackMessage(l, err))}
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
