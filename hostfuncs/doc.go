// Package hostfuncs provides the native modules exposed to Lua scripts and the
// fixed descriptor set that decides which of them an interpreter receives.
//
// Module implementations here have NO interpreter dependencies. They are
// written against the neutral Namespace, Func and Args types; the adapters in
// infrastructure/golua and infrastructure/gopherlua translate them for a
// concrete Lua virtual machine.
//
// # Descriptor set
//
// The set is an ordered list of ModuleDescriptor values made of a common core
// prefix followed by exactly one variant tail:
//
//	system, renderer, renwindow, regex, process, thread,
//	dirmonitor, utf8extra, encoding, shmem,
//	<tail>
//
// The tail is chosen by the same build tag that chooses the interpreter
// backend. Builds tagged gopherlua run a Lua 5.1 dialect and receive the
// compat53.string, compat53.table and compat53.utf8 shims; default builds run
// Lua 5.2 and receive the bit shim.
//
// # Writing a module
//
//	var Greeter = OpenFunc(func(ns Namespace) error {
//	    ns.SetFunc("hello", func(ctx context.Context, args Args) ([]any, error) {
//	        name, err := args.OptString(1, "world")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return []any{"hello " + name}, nil
//	    })
//	    return nil
//	})
package hostfuncs
