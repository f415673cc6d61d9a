package hostfuncs

import (
	"math"
)

// Args holds the arguments of a native call. Positions are 1-based, matching
// the way scripts and error messages count them.
type Args struct {
	Func   string
	Values []any
}

// NewArgs builds Args for the named function.
func NewArgs(fn string, values ...any) Args {
	return Args{Func: fn, Values: values}
}

// Len returns the number of arguments passed.
func (a Args) Len() int {
	return len(a.Values)
}

// Get returns the argument at position n, or nil when it is absent.
func (a Args) Get(n int) any {
	if n < 1 || n > len(a.Values) {
		return nil
	}
	return a.Values[n-1]
}

// IsNil reports whether the argument at n is absent or nil.
func (a Args) IsNil(n int) bool {
	return a.Get(n) == nil
}

// String returns the argument at n as a string. Numbers are converted the
// way Lua coerces them.
func (a Args) String(n int) (string, error) {
	switch v := a.Get(n).(type) {
	case string:
		return v, nil
	case int, int64, float64:
		return formatNumber(v), nil
	}
	return "", a.argError(n, "string")
}

// OptString returns the argument at n as a string, or def when it is nil.
func (a Args) OptString(n int, def string) (string, error) {
	if a.IsNil(n) {
		return def, nil
	}
	return a.String(n)
}

// Number returns the argument at n as a float64.
func (a Args) Number(n int) (float64, error) {
	switch v := a.Get(n).(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, a.argError(n, "number")
}

// OptNumber returns the argument at n as a float64, or def when it is nil.
func (a Args) OptNumber(n int, def float64) (float64, error) {
	if a.IsNil(n) {
		return def, nil
	}
	return a.Number(n)
}

// Int returns the argument at n as an int. Floats with a fractional part are
// rejected.
func (a Args) Int(n int) (int, error) {
	switch v := a.Get(n).(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
		return 0, &ArgError{Func: a.Func, Index: n, Expected: "number has no integer representation"}
	}
	return 0, a.argError(n, "number")
}

// OptInt returns the argument at n as an int, or def when it is nil.
func (a Args) OptInt(n int, def int) (int, error) {
	if a.IsNil(n) {
		return def, nil
	}
	return a.Int(n)
}

// Bool returns the truthiness of the argument at n: only nil and false are
// false.
func (a Args) Bool(n int) bool {
	switch v := a.Get(n).(type) {
	case nil:
		return false
	case bool:
		return v
	}
	return true
}

// List returns the argument at n as a sequence table. An empty table is
// accepted as an empty list.
func (a Args) List(n int) ([]any, error) {
	switch v := a.Get(n).(type) {
	case []any:
		return v, nil
	case map[string]any:
		if len(v) == 0 {
			return []any{}, nil
		}
	}
	return nil, a.argError(n, "table")
}

// Map returns the argument at n as a record table. For a table that also
// has non-string keys only the string-keyed fields are returned.
func (a Args) Map(n int) (map[string]any, error) {
	switch v := a.Get(n).(type) {
	case map[string]any:
		return v, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if s, ok := k.(string); ok {
				out[s] = item
			}
		}
		return out, nil
	case []any:
		if len(v) == 0 {
			return map[string]any{}, nil
		}
	}
	return nil, a.argError(n, "table")
}

// OptMap returns the argument at n as a record table, or an empty map when
// it is nil.
func (a Args) OptMap(n int) (map[string]any, error) {
	if a.IsNil(n) {
		return map[string]any{}, nil
	}
	return a.Map(n)
}

// Callable returns the argument at n as a script function.
func (a Args) Callable(n int) (Callable, error) {
	if fn, ok := a.Get(n).(Callable); ok {
		return fn, nil
	}
	return nil, a.argError(n, "function")
}

// Rest returns the arguments from position n onwards.
func (a Args) Rest(n int) []any {
	if n < 1 || n > len(a.Values) {
		return nil
	}
	return a.Values[n-1:]
}

func (a Args) argError(n int, expected string) error {
	return &ArgError{Func: a.Func, Index: n, Expected: expected, Got: TypeName(a.Get(n))}
}

// Arg returns the argument at n as a T. It is used for userdata values such
// as *Process received by methods.
func Arg[T any](a Args, n int, class string) (T, error) {
	v, ok := a.Get(n).(T)
	if !ok {
		var zero T
		return zero, a.argError(n, class)
	}
	return v, nil
}

// Self returns the receiver of a method call.
func Self[T any](a Args, class string) (T, error) {
	return Arg[T](a, 1, class)
}
