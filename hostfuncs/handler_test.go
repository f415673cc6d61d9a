package hostfuncs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFunc_Open(t *testing.T) {
	want := errors.New("open failed")
	var got Namespace
	entry := OpenFunc(func(ns Namespace) error {
		got = ns
		return want
	})

	err := entry.Open(nil)
	assert.ErrorIs(t, err, want)
	assert.Nil(t, got)
}

func TestArgs_Accessors(t *testing.T) {
	cb := Callable(func(args ...any) ([]any, error) { return args, nil })
	args := NewArgs("test.fn", "s", 2, 2.5, true, []any{1}, map[string]any{"k": 1}, cb, nil)

	assert.Equal(t, 8, args.Len())
	assert.Nil(t, args.Get(0))
	assert.Nil(t, args.Get(99))
	assert.True(t, args.IsNil(8))
	assert.True(t, args.IsNil(9))

	s, err := args.String(1)
	require.NoError(t, err)
	assert.Equal(t, "s", s)

	s, err = args.String(2)
	require.NoError(t, err)
	assert.Equal(t, "2", s)

	f, err := args.Number(3)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0)

	n, err := args.Int(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = args.Int(3)
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, 3, argErr.Index)

	assert.True(t, args.Bool(4))
	assert.True(t, args.Bool(2))
	assert.False(t, args.Bool(8))

	list, err := args.List(5)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, list)

	m, err := args.Map(6)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": 1}, m)

	fn, err := args.Callable(7)
	require.NoError(t, err)
	out, err := fn("x")
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, out)

	assert.Equal(t, []any{nil}, args.Rest(8))
	assert.Nil(t, args.Rest(10))
}

func TestArgs_Optional(t *testing.T) {
	args := NewArgs("test.fn")

	s, err := args.OptString(1, "def")
	require.NoError(t, err)
	assert.Equal(t, "def", s)

	n, err := args.OptInt(1, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	f, err := args.OptNumber(1, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 0)

	m, err := args.OptMap(1)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestArgs_EmptyTables(t *testing.T) {
	args := NewArgs("test.fn", map[string]any{}, []any{})

	list, err := args.List(1)
	require.NoError(t, err)
	assert.Empty(t, list)

	m, err := args.Map(2)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestArgs_TypeErrors(t *testing.T) {
	args := NewArgs("regex.compile", true)

	_, err := args.String(1)
	assert.EqualError(t, err, "bad argument #1 to 'regex.compile' (string expected, got boolean)")

	_, err = args.Number(2)
	assert.EqualError(t, err, "bad argument #2 to 'regex.compile' (number expected, got no value)")

	_, err = args.Callable(1)
	assert.EqualError(t, err, "bad argument #1 to 'regex.compile' (function expected, got boolean)")
}

type widget struct{ id int }

func TestArg_Generic(t *testing.T) {
	w := &widget{id: 3}
	args := NewArgs("widget:poke", w, "x")

	self, err := Self[*widget](args, "Widget")
	require.NoError(t, err)
	assert.Same(t, w, self)

	_, err = Arg[*widget](args, 2, "Widget")
	assert.EqualError(t, err, "bad argument #2 to 'widget:poke' (Widget expected, got string)")
}
