//go:build gopherlua

package hostfuncs

// ActiveVariant returns the variant tail for the Lua 5.1 backend, which
// lacks the Lua 5.3 string, table and utf8 additions.
func ActiveVariant() Variant {
	return Compat53Variant()
}
