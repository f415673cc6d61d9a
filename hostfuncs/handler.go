package hostfuncs

import (
	"context"
)

// Func is the signature of every native function bound into a module table.
// It accepts the call context and the converted positional arguments, and
// returns the values handed back to the script.
//
// Values crossing the boundary are limited to nil, bool, int, int64, float64,
// string, []byte, []any (sequence tables), map[string]any (record tables),
// Func, Object and, on the way in, Callable.
type Func func(ctx context.Context, args Args) ([]any, error)

// Object is a Go value exposed to scripts as userdata carrying the methods
// registered with Namespace.SetClass under Class.
type Object struct {
	Value any
	Class string
}

// Callable is a script function received as an argument. It is only valid
// for the duration of the native call that received it.
type Callable func(args ...any) ([]any, error)

// EntryPoint populates the namespace table of one native module. It is
// invoked at most once per interpreter.
type EntryPoint interface {
	Open(ns Namespace) error
}

// OpenFunc adapts an ordinary function to EntryPoint.
type OpenFunc func(ns Namespace) error

// Open calls f(ns).
func (f OpenFunc) Open(ns Namespace) error {
	return f(ns)
}

// Namespace is the runtime handle given to an EntryPoint. It is bound to the
// module table being populated and must not be retained after Open returns.
type Namespace interface {
	// Name returns the module name the table is registered under.
	Name() string

	// Context returns the interpreter context. Native functions receive a
	// HostContext derived from it.
	Context() context.Context

	// SetFunc binds fn as field name of the module table.
	SetFunc(name string, fn Func)

	// SetValue binds a constant, a nested table or a Func as field name.
	SetValue(name string, value any)

	// SetClass registers the method table used by Objects of the given class.
	SetClass(class string, methods map[string]Func)

	// Eval runs a Lua chunk that receives the module table as its first
	// vararg. Shims written in Lua use it to add fields in place.
	Eval(chunk string) error

	// Fork creates a sibling interpreter with the same descriptor set.
	Fork() (Interpreter, error)
}

// Interpreter is the minimal surface of a running Lua state used by modules
// that start their own interpreters.
type Interpreter interface {
	DoString(chunk string, args ...any) ([]any, error)
	Close() error
}

// Runtime is the binding surface an interpreter backend exposes to the
// registry loader.
type Runtime interface {
	Interpreter

	// Require binds a module under name. When name is already present in
	// package.loaded the cached table is kept and entry is not invoked; bound
	// reports whether entry ran. On success the table is stored in
	// package.loaded and, when global is set, as a global of the same name.
	Require(name string, entry EntryPoint, global bool) (bound bool, err error)

	// Loaded reports whether package.loaded holds a value for name.
	Loaded(name string) bool

	// DoFile runs a script file with the given arguments.
	DoFile(path string, args ...any) ([]any, error)

	// Backend names the interpreter implementation.
	Backend() string
}
