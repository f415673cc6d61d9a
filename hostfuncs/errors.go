package hostfuncs

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jgmdev/pragtical/go/wireformat"
)

// Descriptor set construction errors.
var (
	ErrEmptyName      = errors.New("module name cannot be empty")
	ErrDuplicateName  = errors.New("duplicate module name")
	ErrNilEntryPoint  = errors.New("module entry point is nil")
	ErrVariantSet     = errors.New("variant tail already selected")
	ErrNoVariant      = errors.New("no variant tail selected")
	ErrNotTransferred = wireformat.ErrNotTransferable
)

// ArgError reports a bad argument to a native function. Its message follows
// the wording scripts already know from the Lua standard library.
type ArgError struct {
	Func     string
	Expected string
	Got      string
	Index    int
}

func (e *ArgError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("bad argument #%d to '%s' (%s)", e.Index, e.Func, e.Expected)
	}
	return fmt.Sprintf("bad argument #%d to '%s' (%s expected, got %s)", e.Index, e.Func, e.Expected, e.Got)
}

// PanicError is returned in place of a panic raised by a native function.
type PanicError struct {
	Value any
	Func  string
}

func (e *PanicError) Error() string {
	var msg string
	if err, ok := e.Value.(error); ok {
		msg = err.Error()
	} else if s, ok := e.Value.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	if e.Func == "" {
		return "panic: " + msg
	}
	return fmt.Sprintf("panic in %s: %s", e.Func, msg)
}

// NewPanicError wraps a recovered panic value.
func NewPanicError(fn string, panicValue any) error {
	return &PanicError{Func: fn, Value: panicValue}
}

// TypeName returns the Lua type name of a converted value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "no value"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	case string, []byte:
		return "string"
	case []any, map[string]any, map[any]any:
		return "table"
	case Func, Callable:
		return "function"
	}
	return "userdata"
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', 14, 64)
	}
	return fmt.Sprint(v)
}
