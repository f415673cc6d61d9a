//go:build !gopherlua

package hostfuncs

// ActiveVariant returns the variant tail for the default Lua 5.2 backend,
// which lacks the LuaJIT bit library.
func ActiveVariant() Variant {
	return BitVariant()
}
