package gopherlua_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/infrastructure/gopherlua"
)

type counter struct {
	n int
}

func newRuntime(t *testing.T, opts ...gopherlua.Option) *gopherlua.Runtime {
	t.Helper()
	rt := gopherlua.New(context.Background(), opts...)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func counterModule(opened *int) hostfuncs.EntryPoint {
	return hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
		*opened++
		ns.SetClass("test.Counter", map[string]hostfuncs.Func{
			"add": func(_ context.Context, args hostfuncs.Args) ([]any, error) {
				c, err := hostfuncs.Self[*counter](args, "test.Counter")
				if err != nil {
					return nil, err
				}
				by, err := args.OptInt(2, 1)
				if err != nil {
					return nil, err
				}
				c.n += by
				return []any{c.n}, nil
			},
		})
		ns.SetFunc("new", func(context.Context, hostfuncs.Args) ([]any, error) {
			return []any{hostfuncs.Object{Class: "test.Counter", Value: &counter{}}}, nil
		})
		ns.SetFunc("apply", func(_ context.Context, args hostfuncs.Args) ([]any, error) {
			fn, err := args.Callable(1)
			if err != nil {
				return nil, err
			}
			return fn(args.Rest(2)...)
		})
		ns.SetFunc("echo", func(_ context.Context, args hostfuncs.Args) ([]any, error) {
			return args.Values, nil
		})
		ns.SetValue("version", "1.0")
		return nil
	})
}

func TestRuntime_Backend(t *testing.T) {
	assert.Equal(t, gopherlua.BackendName, newRuntime(t).Backend())
}

func TestRuntime_RequireBindsOnce(t *testing.T) {
	rt := newRuntime(t)
	opened := 0

	bound, err := rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)
	assert.True(t, bound)
	assert.True(t, rt.Loaded("counter"))

	bound, err = rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)
	assert.False(t, bound)
	assert.Equal(t, 1, opened)

	out, err := rt.DoString(`return require("counter") == counter, counter.version`)
	require.NoError(t, err)
	assert.Equal(t, []any{true, "1.0"}, out)
}

func TestRuntime_RequireWithoutGlobal(t *testing.T) {
	rt := newRuntime(t)
	opened := 0

	_, err := rt.Require("hidden", counterModule(&opened), false)
	require.NoError(t, err)

	out, err := rt.DoString(`return hidden == nil, require("hidden").version`)
	require.NoError(t, err)
	assert.Equal(t, []any{true, "1.0"}, out)
}

func TestRuntime_RequireFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		entry hostfuncs.EntryPoint
		check func(t *testing.T, err error)
	}{
		{
			name:  "nil entry",
			entry: nil,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, hostfuncs.ErrNilEntryPoint)
			},
		},
		{
			name: "error",
			entry: hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
				ns.SetValue("partial", true)
				return boom
			}),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
			},
		},
		{
			name: "panic",
			entry: hostfuncs.OpenFunc(func(hostfuncs.Namespace) error {
				panic("exploded")
			}),
			check: func(t *testing.T, err error) {
				var panicErr *hostfuncs.PanicError
				require.ErrorAs(t, err, &panicErr)
				assert.Equal(t, "broken", panicErr.Func)
			},
		},
		{
			name: "bad eval",
			entry: hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
				return ns.Eval(`error("nope")`)
			}),
			check: func(t *testing.T, err error) {
				var scriptErr *derrors.ScriptError
				require.ErrorAs(t, err, &scriptErr)
				assert.Contains(t, err.Error(), "nope")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			bound, err := rt.Require("broken", tt.entry, true)
			require.Error(t, err)
			assert.False(t, bound)
			tt.check(t, err)
			assert.False(t, rt.Loaded("broken"))

			out, err := rt.DoString(`return broken`)
			require.NoError(t, err)
			assert.Equal(t, []any{nil}, out)
		})
	}
}

func TestRuntime_ObjectsAndMethods(t *testing.T) {
	rt := newRuntime(t)
	opened := 0
	_, err := rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)

	out, err := rt.DoString(`
		local c = counter.new()
		c:add()
		return c:add(5)
	`)
	require.NoError(t, err)
	assert.Equal(t, []any{6}, out)

	_, err = rt.DoString(`local c = counter.new(); return c.add("x")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.Counter expected")
}

func TestRuntime_Callables(t *testing.T) {
	rt := newRuntime(t)
	opened := 0
	_, err := rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)

	out, err := rt.DoString(`return counter.apply(function(a, b) return a * b, "done" end, 6, 7)`)
	require.NoError(t, err)
	assert.Equal(t, []any{42, "done"}, out)

	_, err = rt.DoString(`return counter.apply(function() error("inner") end)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner")
}

func TestRuntime_Conversions(t *testing.T) {
	rt := newRuntime(t)
	opened := 0
	_, err := rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)

	tests := []struct {
		name  string
		chunk string
		args  []any
		want  []any
	}{
		{"integers", `return 1, -2, 2^40`, nil, []any{1, -2, 1 << 40}},
		{"floats", `return 1.5`, nil, []any{1.5}},
		{"strings", `return "a\0b"`, nil, []any{"a\x00b"}},
		{"booleans and nil", `return true, nil, false`, nil, []any{true, nil, false}},
		{"sequence", `return { 1, "two", true }`, nil, []any{[]any{1, "two", true}}},
		{"record", `return { a = 1, b = { c = "d" } }`, nil, []any{map[string]any{"a": 1, "b": map[string]any{"c": "d"}}}},
		{"mixed", `return { 10, x = 1 }`, nil, []any{map[any]any{1: 10, "x": 1}}},
		{"empty table", `return {}`, nil, []any{map[string]any{}}},
		{"holes", `return { [1] = "a", [3] = "c" }`, nil, []any{map[any]any{1: "a", 3: "c"}}},
		{"boolean keys", `return { [true] = "y", [2] = "b" }`, nil, []any{map[any]any{true: "y", 2: "b"}}},
		{"mixed argument", `local t = ...; return t[1], t["1"], t.k`, []any{map[any]any{1: "a", "k": "v"}}, []any{"a", nil, "v"}},
		{"mixed native round trip", `local v = counter.echo({ 10, 20, n = 2 }); return v[1], v["1"], v.n`, nil, []any{10, nil, 2}},
		{"arguments", `return ...`, []any{"s", 2, []any{1, 2}, map[string]any{"k": "v"}}, []any{"s", 2, []any{1, 2}, map[string]any{"k": "v"}}},
		{"native round trip", `return counter.echo(...)`, []any{[]byte("raw"), int64(7)}, []any{"raw", 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := rt.DoString(tt.chunk, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRuntime_CyclicTable(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.DoString(`local t = {}; t.self = t; return t`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains itself")

	out, err := rt.DoString(`local s = { 1 }; return { a = s, b = s }`)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"a": []any{1}, "b": []any{1}}}, out)
}

func TestRuntime_DeepTable(t *testing.T) {
	rt := newRuntime(t)

	out, err := rt.DoString(`local t = {} for i = 1, 30 do t = { t } end return t`)
	require.NoError(t, err)
	var want any = map[string]any{}
	for range 30 {
		want = []any{want}
	}
	assert.Equal(t, []any{want}, out)

	_, err = rt.DoString(`local t = {} for i = 1, 100 do t = { t } end return t`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting")

	ok, err := rt.DoString(`return 1`)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, ok)
}

func TestRuntime_UnsupportedArgument(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.DoString(`return ...`, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot pass struct {}")
}

func TestRuntime_Eval(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Require("table53", hostfuncs.Compat53TableModule, false)
	require.NoError(t, err)

	out, err := rt.DoString(`
		local t53 = require("table53")
		local moved = t53.move({ 1, 2, 3 }, 1, 3, 2)
		local packed = t53.pack("a", nil, "c")
		return moved, packed.n
	`)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{1, 1, 2, 3}, 3}, out)
}

func TestRuntime_ScriptErrors(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.DoString(`return (`)
	var scriptErr *derrors.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "chunk", scriptErr.Chunk)

	_, err = rt.DoString(`error("runtime failure")`)
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, err.Error(), "runtime failure")

	// the state stays usable after a failed chunk
	out, err := rt.DoString(`return 1`)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, out)
}

func TestRuntime_Middleware(t *testing.T) {
	var names []string
	trace := func(next hostfuncs.Func) hostfuncs.Func {
		return func(ctx context.Context, args hostfuncs.Args) ([]any, error) {
			names = append(names, hostfuncs.FunctionName(ctx))
			return next(ctx, args)
		}
	}
	rt := newRuntime(t, gopherlua.WithMiddleware(trace))
	opened := 0
	_, err := rt.Require("counter", counterModule(&opened), true)
	require.NoError(t, err)

	_, err = rt.DoString(`local c = counter.new(); c:add(1); return counter.echo()`)
	require.NoError(t, err)
	assert.Equal(t, []string{"counter.new", "test.Counter:add", "counter.echo"}, names)
}

func TestRuntime_NativePanicBecomesError(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Require("p", hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
		ns.SetFunc("boom", func(context.Context, hostfuncs.Args) ([]any, error) {
			panic("kaboom")
		})
		return nil
	}), true)
	require.NoError(t, err)

	out, err := rt.DoString(`local ok, msg = pcall(p.boom); return ok, msg`)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, false, out[0])
	assert.Contains(t, out[1], "kaboom")
}

func TestRuntime_DoFileAndSearchPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.lua"), []byte(`return { n = 5 }`), 0o600))
	main := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(main, []byte(`return require("helper").n + ...`), 0o600))

	rt := newRuntime(t, gopherlua.WithSearchPaths(filepath.Join(dir, "?.lua")))
	out, err := rt.DoFile(main, 10)
	require.NoError(t, err)
	assert.Equal(t, []any{15}, out)
}

func TestRuntime_Fork(t *testing.T) {
	rt := newRuntime(t, gopherlua.WithForker(func() (hostfuncs.Interpreter, error) {
		return gopherlua.New(context.Background()), nil
	}))
	var child hostfuncs.Interpreter
	_, err := rt.Require("forker", hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
		var err error
		child, err = ns.Fork()
		return err
	}), false)
	require.NoError(t, err)
	require.NotNil(t, child)
	defer child.Close()

	out, err := child.DoString(`return forker == nil`)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, out)

	_, err = newRuntime(t).Require("forker", hostfuncs.OpenFunc(func(ns hostfuncs.Namespace) error {
		_, err := ns.Fork()
		return err
	}), false)
	assert.ErrorContains(t, err, "forking is not configured")
}

func TestRuntime_Closed(t *testing.T) {
	rt := gopherlua.New(context.Background())
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	_, err := rt.DoString(`return 1`)
	assert.ErrorIs(t, err, gopherlua.ErrClosed)
	_, err = rt.Require("x", hostfuncs.OpenFunc(func(hostfuncs.Namespace) error { return nil }), true)
	assert.ErrorIs(t, err, gopherlua.ErrClosed)
	assert.False(t, rt.Loaded("x"))
}
