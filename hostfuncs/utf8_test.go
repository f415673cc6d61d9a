package hostfuncs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgmdev/pragtical/go/hostfuncs"
)

func TestCellWidth(t *testing.T) {
	assert.Equal(t, 1, hostfuncs.CellWidth('a'))
	assert.Equal(t, 2, hostfuncs.CellWidth('\u65e5'))
	assert.Equal(t, 2, hostfuncs.CellWidth('\uff21'))
	assert.Equal(t, 0, hostfuncs.CellWidth('\u0301'))
	assert.Equal(t, 5, hostfuncs.StringWidth("a\u65e5\u672c"))
}

func TestUTF8ExtraModule_Calls(t *testing.T) {
	ns := openModule(t, "utf8extra", hostfuncs.UTF8ExtraModule)
	assert.Equal(t, hostfuncs.UTF8CharPattern, ns.Fields["charpattern"])

	tests := []struct {
		name string
		fn   string
		args []any
		want []any
	}{
		{"len", "len", []any{"h\u00e9llo"}, []any{5}},
		{"len invalid", "len", []any{"a\xff"}, []any{nil, 2}},
		{"sub", "sub", []any{"h\u00e9llo", 2, 3}, []any{"\u00e9l"}},
		{"sub negative", "sub", []any{"h\u00e9llo", -2}, []any{"lo"}},
		{"sub empty", "sub", []any{"h\u00e9llo", 4, 2}, []any{""}},
		{"byte", "byte", []any{"\u00e9"}, []any{233}},
		{"byte range", "byte", []any{"a\u00e9", 1, -1}, []any{97, 233}},
		{"char", "char", []any{72, 233}, []any{"H\u00e9"}},
		{"upper", "upper", []any{"h\u00e9llo"}, []any{"H\u00c9LLO"}},
		{"lower", "lower", []any{"\u00c0B"}, []any{"\u00e0b"}},
		{"reverse", "reverse", []any{"a\u00f1b"}, []any{"b\u00f1a"}},
		{"width string", "width", []any{"\u65e5\u672c"}, []any{4}},
		{"width codepoint", "width", []any{0x301}, []any{0}},
		{"normalize nfc", "normalize", []any{"e\u0301"}, []any{"\u00e9"}},
		{"normalize nfd", "normalize", []any{"\u00e9", "nfd"}, []any{"e\u0301"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ns.Call(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestUTF8ExtraModule_Errors(t *testing.T) {
	ns := openModule(t, "utf8extra", hostfuncs.UTF8ExtraModule)

	_, err := ns.Call("char", -1)
	assert.EqualError(t, err, "bad argument #1 to 'utf8extra.char' (value out of range)")

	_, err = ns.Call("normalize", "x", "NFX")
	assert.Error(t, err)

	_, err = ns.Call("width", true)
	assert.EqualError(t, err, "bad argument #1 to 'utf8extra.width' (string or number expected, got boolean)")
}

func TestCompat53UTF8Module_Calls(t *testing.T) {
	ns := openModule(t, "compat53.utf8", hostfuncs.Compat53UTF8Module)

	tests := []struct {
		name string
		fn   string
		args []any
		want []any
	}{
		{"codepoint", "codepoint", []any{"h\u00e9llo", 1, 3}, []any{104, 233}},
		{"codepoint default", "codepoint", []any{"h\u00e9llo"}, []any{104}},
		{"len", "len", []any{"h\u00e9llo"}, []any{5}},
		{"len from byte", "len", []any{"h\u00e9llo", 4}, []any{3}},
		{"len invalid", "len", []any{"ab\xff"}, []any{nil, 3}},
		{"offset forward", "offset", []any{"h\u00e9llo", 3}, []any{4}},
		{"offset backward", "offset", []any{"h\u00e9llo", -1}, []any{6}},
		{"offset zero", "offset", []any{"h\u00e9llo", 0, 3}, []any{2}},
		{"offset past end", "offset", []any{"ab", 5}, []any{nil}},
		{"char", "char", []any{0x48, 0x49}, []any{"HI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ns.Call(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := ns.Call("codepoint", "abc", 1, 9)
	assert.Error(t, err)

	_, err = ns.Call("offset", "h\u00e9llo", 1, 3)
	assert.EqualError(t, err, "initial position is a continuation byte")
}

func TestCompat53UTF8Module_Codes(t *testing.T) {
	ns := openModule(t, "compat53.utf8", hostfuncs.Compat53UTF8Module)

	out, err := ns.Call("codes", "h\u00e9!")
	require.NoError(t, err)
	require.Len(t, out, 3)
	iter, ok := out[0].(hostfuncs.Func)
	require.True(t, ok)

	var got [][2]int
	pos := 0
	for {
		res, err := iter(context.Background(), hostfuncs.NewArgs("iter", "h\u00e9!", pos))
		require.NoError(t, err)
		if res[0] == nil {
			break
		}
		pos = res[0].(int)
		got = append(got, [2]int{pos, res[1].(int)})
	}
	assert.Equal(t, [][2]int{{1, 'h'}, {2, '\u00e9'}, {4, '!'}}, got)
}

func TestPack(t *testing.T) {
	tests := []struct {
		name   string
		format string
		values []any
		want   string
	}{
		{"little short", "<i2", []any{1}, "\x01\x00"},
		{"big unsigned", ">I2", []any{258}, "\x01\x02"},
		{"signed byte", "b", []any{-1}, "\xff"},
		{"zero terminated", "z", []any{"ab"}, "ab\x00"},
		{"length prefixed", "s1", []any{"hi"}, "\x02hi"},
		{"fixed", "c3", []any{"a"}, "a\x00\x00"},
		{"padding", "BxB", []any{1, 2}, "\x01\x00\x02"},
		{"aligned", "!4 B i4", []any{1, 2}, "\x01\x00\x00\x00\x02\x00\x00\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := hostfuncs.Pack(tt.format, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))

			back, err := hostfuncs.Unpack(tt.format, out, 1)
			require.NoError(t, err)
			assert.Equal(t, len(out)+1, back[len(back)-1])
		})
	}
}

func TestPack_Errors(t *testing.T) {
	_, err := hostfuncs.Pack("b", []any{200})
	assert.Error(t, err)

	_, err = hostfuncs.Pack("i17", []any{1})
	assert.EqualError(t, err, "integral size (17) out of limits [1,16]")

	_, err = hostfuncs.Pack("z", []any{"a\x00b"})
	assert.Error(t, err)

	_, err = hostfuncs.Pack("q", nil)
	assert.EqualError(t, err, "invalid format option 'q'")

	_, err = hostfuncs.Pack("c", []any{"a"})
	assert.Error(t, err)
}

func TestUnpack(t *testing.T) {
	out, err := hostfuncs.Unpack(">I2", []byte("\x01\x02"), 1)
	require.NoError(t, err)
	assert.Equal(t, []any{258, 3}, out)

	out, err = hostfuncs.Unpack("b", []byte("x\xff"), -1)
	require.NoError(t, err)
	assert.Equal(t, []any{-1, 3}, out)

	out, err = hostfuncs.Unpack("<d", []byte("\x00\x00\x00\x00\x00\x00\xf8\x3f"), 1)
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, 9}, out)

	_, err = hostfuncs.Unpack("i4", []byte("\x01"), 1)
	assert.EqualError(t, err, "data string too short")

	_, err = hostfuncs.Unpack("z", []byte("abc"), 1)
	assert.Error(t, err)

	_, err = hostfuncs.Unpack("b", []byte("a"), 5)
	assert.EqualError(t, err, "initial position out of string")
}

func TestPacksize(t *testing.T) {
	n, err := hostfuncs.Packsize("i4i8")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = hostfuncs.Packsize("!i1i8")
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	_, err = hostfuncs.Packsize("s")
	assert.Error(t, err)
}

func TestCompat53StringModule_Calls(t *testing.T) {
	ns := openModule(t, "compat53.string", hostfuncs.Compat53StringModule)

	out, err := ns.Call("rep", "ab", 3, ",")
	require.NoError(t, err)
	assert.Equal(t, []any{"ab,ab,ab"}, out)

	out, err = ns.Call("rep", "ab", 0)
	require.NoError(t, err)
	assert.Equal(t, []any{""}, out)

	out, err = ns.Call("pack", ">i2", 7)
	require.NoError(t, err)
	assert.Equal(t, []any{"\x00\x07"}, out)

	out, err = ns.Call("unpack", ">i2", "\x00\x07")
	require.NoError(t, err)
	assert.Equal(t, []any{7, 3}, out)

	out, err = ns.Call("packsize", "i2")
	require.NoError(t, err)
	assert.Equal(t, []any{2}, out)

	_, err = ns.Call("rep", "x", 1<<30, "y")
	assert.EqualError(t, err, "resulting string too large")
}

func TestCompat53TableModule_Evaluates(t *testing.T) {
	ns := openModule(t, "compat53.table", hostfuncs.Compat53TableModule)
	require.Len(t, ns.Evals, 1)
	assert.Contains(t, ns.Evals[0], "function M.move")
	assert.Contains(t, ns.Evals[0], "function M.pack")
}
