package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// ErrNoScripts is returned by FakeRuntime.DoString and DoFile.
var ErrNoScripts = errors.New("fake runtime cannot run scripts")

// FakeRuntime is an in-memory hostfuncs.Runtime. It memoizes Require the way
// the real backends do and records every entry point it opens, so loader
// behaviour can be tested without an interpreter.
type FakeRuntime struct {
	ctx     context.Context
	loaded  map[string]*FakeNamespace
	globals map[string]*FakeNamespace
	classes map[string]map[string]hostfuncs.Func
	forker  func() (hostfuncs.Interpreter, error)
	opened  []string
	mu      sync.Mutex
	closed  bool
}

var _ hostfuncs.Runtime = (*FakeRuntime)(nil)

// NewFakeRuntime creates an empty runtime bound to ctx.
func NewFakeRuntime(ctx context.Context) *FakeRuntime {
	return &FakeRuntime{
		ctx:     ctx,
		loaded:  make(map[string]*FakeNamespace),
		globals: make(map[string]*FakeNamespace),
		classes: make(map[string]map[string]hostfuncs.Func),
	}
}

// WithForker sets the function served by Namespace.Fork.
func (r *FakeRuntime) WithForker(f func() (hostfuncs.Interpreter, error)) *FakeRuntime {
	r.forker = f
	return r
}

// Require implements hostfuncs.Runtime.
func (r *FakeRuntime) Require(name string, entry hostfuncs.EntryPoint, global bool) (bound bool, err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, errors.New("runtime is closed")
	}
	if _, ok := r.loaded[name]; ok {
		r.mu.Unlock()
		return false, nil
	}
	r.opened = append(r.opened, name)
	r.mu.Unlock()

	if entry == nil {
		return false, fmt.Errorf("%w: %q", hostfuncs.ErrNilEntryPoint, name)
	}

	ns := &FakeNamespace{rt: r, name: name, Fields: make(map[string]any)}
	defer func() {
		if p := recover(); p != nil {
			bound = false
			err = hostfuncs.NewPanicError(name, p)
		}
	}()
	if err := entry.Open(ns); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[name] = ns
	if global {
		r.globals[name] = ns
	}
	return true, nil
}

// Loaded implements hostfuncs.Runtime.
func (r *FakeRuntime) Loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loaded[name]
	return ok
}

// Module returns the table stored for name.
func (r *FakeRuntime) Module(name string) (*FakeNamespace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.loaded[name]
	return ns, ok
}

// Global returns the table bound as global name.
func (r *FakeRuntime) Global(name string) (*FakeNamespace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.globals[name]
	return ns, ok
}

// Opened returns the names whose entry points were invoked, in order.
func (r *FakeRuntime) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// Class returns the methods registered for class.
func (r *FakeRuntime) Class(class string) map[string]hostfuncs.Func {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classes[class]
}

// DoString implements hostfuncs.Interpreter.
func (r *FakeRuntime) DoString(string, ...any) ([]any, error) {
	return nil, ErrNoScripts
}

// DoFile implements hostfuncs.Runtime.
func (r *FakeRuntime) DoFile(string, ...any) ([]any, error) {
	return nil, ErrNoScripts
}

// Close implements hostfuncs.Interpreter.
func (r *FakeRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Backend implements hostfuncs.Runtime.
func (r *FakeRuntime) Backend() string {
	return "fake"
}

// FakeNamespace is the module table built by a FakeRuntime.
type FakeNamespace struct {
	rt     *FakeRuntime
	Fields map[string]any
	name   string
	Evals  []string
}

var _ hostfuncs.Namespace = (*FakeNamespace)(nil)

// Name implements hostfuncs.Namespace.
func (ns *FakeNamespace) Name() string {
	return ns.name
}

// Context implements hostfuncs.Namespace.
func (ns *FakeNamespace) Context() context.Context {
	return ns.rt.ctx
}

// SetFunc implements hostfuncs.Namespace.
func (ns *FakeNamespace) SetFunc(name string, fn hostfuncs.Func) {
	ns.Fields[name] = fn
}

// SetValue implements hostfuncs.Namespace.
func (ns *FakeNamespace) SetValue(name string, value any) {
	ns.Fields[name] = value
}

// SetClass implements hostfuncs.Namespace.
func (ns *FakeNamespace) SetClass(class string, methods map[string]hostfuncs.Func) {
	ns.rt.mu.Lock()
	defer ns.rt.mu.Unlock()
	ns.rt.classes[class] = methods
}

// Eval records the chunk. Fake namespaces cannot run Lua.
func (ns *FakeNamespace) Eval(chunk string) error {
	ns.Evals = append(ns.Evals, chunk)
	return nil
}

// Fork implements hostfuncs.Namespace.
func (ns *FakeNamespace) Fork() (hostfuncs.Interpreter, error) {
	if ns.rt.forker == nil {
		return nil, errors.New("fork not configured")
	}
	return ns.rt.forker()
}

// Call invokes the function stored in field name.
func (ns *FakeNamespace) Call(name string, args ...any) ([]any, error) {
	fn, ok := ns.Fields[name].(hostfuncs.Func)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a function", ns.name, name)
	}
	qualified := ns.name + "." + name
	return fn(hostfuncs.NewHostContext(ns.rt.ctx, qualified), hostfuncs.NewArgs(qualified, args...))
}

// CallMethod invokes method on self, which must be an Object of class.
func (ns *FakeNamespace) CallMethod(self hostfuncs.Object, method string, args ...any) ([]any, error) {
	methods := ns.rt.Class(self.Class)
	fn, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %s", self.Class, method)
	}
	qualified := self.Class + ":" + method
	values := append([]any{self.Value}, args...)
	return fn(hostfuncs.NewHostContext(ns.rt.ctx, qualified), hostfuncs.NewArgs(qualified, values...))
}

// OpenModule binds entry under name into a fresh FakeRuntime and returns
// its namespace. It fails the test if the entry point fails.
func OpenModule(ctx context.Context, name string, entry hostfuncs.EntryPoint) (*FakeNamespace, error) {
	rt := NewFakeRuntime(ctx)
	if _, err := rt.Require(name, entry, true); err != nil {
		return nil, err
	}
	ns, _ := rt.Module(name)
	return ns, nil
}
