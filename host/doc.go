// Package host provides the embedded Lua environment of the editor.
//
// It creates an interpreter on the backend selected at build time (go-lua by
// default, gopher-lua with the gopherlua build tag) and binds the fixed,
// ordered set of native modules into it before any script runs. Binding is
// idempotent: a module already present in package.loaded is not opened
// again. The first module that fails to bind aborts startup.
package host
