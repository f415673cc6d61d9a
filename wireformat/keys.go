package wireformat

import (
	"cmp"
	"slices"
	"strings"
)

// CompareKeys orders table keys: booleans first (false before true), then
// numbers by value, then strings. Keys of any other type sort last and
// compare equal to each other.
func CompareKeys(a, b any) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case string:
		return strings.Compare(x, b.(string))
	}
	fa, _ := keyNumber(a)
	fb, _ := keyNumber(b)
	return cmp.Compare(fa, fb)
}

// SortedKeys returns the keys of m in CompareKeys order.
func SortedKeys(m map[any]any) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

func keyRank(k any) int {
	switch k.(type) {
	case bool:
		return 0
	case int, int64, float64:
		return 1
	case string:
		return 2
	}
	return 3
}

func keyNumber(k any) (float64, bool) {
	switch n := k.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
