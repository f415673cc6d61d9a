package hostfuncs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ArgError
		expected string
	}{
		{
			name:     "with got",
			err:      &ArgError{Func: "regex.compile", Index: 1, Expected: "string", Got: "nil"},
			expected: "bad argument #1 to 'regex.compile' (string expected, got nil)",
		},
		{
			name:     "without got",
			err:      &ArgError{Func: "bit.tohex", Index: 2, Expected: "number has no integer representation"},
			expected: "bad argument #2 to 'bit.tohex' (number has no integer representation)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPanicError_Error(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		fn       string
		expected string
	}{
		{"string value", "boom", "system.exec", "panic in system.exec: boom"},
		{"error value", errors.New("bad state"), "shmem.open", "panic in shmem.open: bad state"},
		{"other value", 42, "thread.create", "panic in thread.create: panic recovered"},
		{"no function", "boom", "", "panic: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPanicError(tt.fn, tt.value)
			assert.Equal(t, tt.expected, err.Error())

			var pe *PanicError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestTypeName(t *testing.T) {
	var fn Func
	var cb Callable
	tests := []struct {
		value    any
		expected string
	}{
		{nil, "no value"},
		{true, "boolean"},
		{1, "number"},
		{int64(1), "number"},
		{1.5, "number"},
		{"s", "string"},
		{[]byte("s"), "string"},
		{[]any{}, "table"},
		{map[string]any{}, "table"},
		{fn, "function"},
		{cb, "function"},
		{struct{}{}, "userdata"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TypeName(tt.value), "%#v", tt.value)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3", formatNumber(3))
	assert.Equal(t, "3", formatNumber(3.0))
	assert.Equal(t, "-7", formatNumber(int64(-7)))
	assert.Equal(t, "0.5", formatNumber(0.5))
	assert.Equal(t, "1e+20", formatNumber(1e20))
}
