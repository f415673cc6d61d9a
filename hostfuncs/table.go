package hostfuncs

// TableBuilder assembles the Go form of a script table. Backends feed it
// every key/value pair with keys already normalized: integral numbers as
// int, other numbers as float64, strings and booleans as themselves.
type TableBuilder struct {
	entries map[any]any
	strKeys int
	seqKeys int
	maxSeq  int
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder(sizeHint int) *TableBuilder {
	return &TableBuilder{entries: make(map[any]any, sizeHint)}
}

// Set records one entry. Each key is expected at most once, as produced by
// iterating a table.
func (b *TableBuilder) Set(key, value any) {
	switch k := key.(type) {
	case string:
		b.strKeys++
	case int:
		if k >= 1 {
			b.seqKeys++
			b.maxSeq = max(b.maxSeq, k)
		}
	}
	b.entries[key] = value
}

// Value returns []any when the keys are exactly 1..n, map[string]any when
// every key is a string and map[any]any for anything else, so integer keys
// of mixed tables keep their type. An empty table is an empty
// map[string]any.
func (b *TableBuilder) Value() any {
	n := len(b.entries)
	switch {
	case n == 0:
		return map[string]any{}
	case b.strKeys == n:
		out := make(map[string]any, n)
		for k, v := range b.entries {
			out[k.(string)] = v
		}
		return out
	case b.seqKeys == n && b.maxSeq == n:
		out := make([]any, n)
		for k, v := range b.entries {
			out[k.(int)-1] = v
		}
		return out
	}
	return b.entries
}
