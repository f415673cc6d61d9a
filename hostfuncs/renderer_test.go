package hostfuncs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/internal/testutil"
)

func TestFont_Metrics(t *testing.T) {
	f := &hostfuncs.Font{Path: "mono.ttf", Size: 14}
	assert.Equal(t, 14, f.Width("ab"))
	assert.Equal(t, 28, f.Width("日本"))
	assert.Equal(t, 18, f.Height())
}

func loadFont(t *testing.T, ns *testutil.FakeNamespace) hostfuncs.Object {
	t.Helper()
	font, ok := ns.Fields["font"].(map[string]any)
	require.True(t, ok)
	load, ok := font["load"].(hostfuncs.Func)
	require.True(t, ok)

	out, err := load(context.Background(), hostfuncs.NewArgs("renderer.font.load", "mono.ttf", 14))
	require.NoError(t, err)
	obj, ok := out[0].(hostfuncs.Object)
	require.True(t, ok)
	return obj
}

func TestRendererModule_Frame(t *testing.T) {
	ns := openModule(t, "renderer", hostfuncs.RendererModule)
	font := loadFont(t, ns)
	assert.Equal(t, hostfuncs.FontClass, font.Class)

	_, err := ns.Call("begin_frame", 100, 50)
	require.NoError(t, err)

	out, err := ns.Call("get_size")
	require.NoError(t, err)
	assert.Equal(t, []any{100, 50}, out)

	_, err = ns.Call("draw_rect", 0, 0, 10, 10, []any{255, 0, 0})
	require.NoError(t, err)
	_, err = ns.Call("draw_rect", 200, 200, 10, 10)
	require.NoError(t, err)

	out, err = ns.Call("draw_text", font.Value, "ab", 10, 5, []any{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []any{24.0}, out)

	_, err = ns.Call("set_clip_rect", 0, 0, 5, 5)
	require.NoError(t, err)
	_, err = ns.Call("draw_rect", 6, 6, 2, 2)
	require.NoError(t, err)

	out, err = ns.Call("end_frame")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{
		map[string]any{"op": "rect", "x": 0, "y": 0, "w": 10, "h": 10, "color": []any{255, 0, 0, 255}},
		map[string]any{"op": "text", "text": "ab", "x": 10, "y": 5, "w": 14, "h": 18, "color": []any{1, 2, 3, 4}},
	}}, out)

	out, err = ns.Call("end_frame")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{}}, out)
}

func TestRendererModule_FontMethods(t *testing.T) {
	ns := openModule(t, "renderer", hostfuncs.RendererModule)
	font := loadFont(t, ns)

	out, err := ns.CallMethod(font, "get_width", "abc")
	require.NoError(t, err)
	assert.Equal(t, []any{21}, out)

	out, err = ns.CallMethod(font, "get_height")
	require.NoError(t, err)
	assert.Equal(t, []any{18}, out)

	out, err = ns.CallMethod(font, "copy", 20)
	require.NoError(t, err)
	copied := out[0].(hostfuncs.Object)
	out, err = ns.CallMethod(copied, "get_size")
	require.NoError(t, err)
	assert.Equal(t, []any{20.0}, out)

	_, err = ns.CallMethod(font, "set_size", 10)
	require.NoError(t, err)
	out, err = ns.CallMethod(font, "get_size")
	require.NoError(t, err)
	assert.Equal(t, []any{10.0}, out)
}

func TestRendererModule_Errors(t *testing.T) {
	ns := openModule(t, "renderer", hostfuncs.RendererModule)

	_, err := ns.Call("draw_text", "not a font", "x", 0, 0)
	assert.EqualError(t, err, "bad argument #1 to 'renderer.draw_text' (renderer.Font expected, got string)")

	_, err = ns.Call("draw_rect", 0, 0, 1, 1, []any{"red"})
	assert.Error(t, err)

	load := ns.Fields["font"].(map[string]any)["load"].(hostfuncs.Func)
	_, err = load(context.Background(), hostfuncs.NewArgs("renderer.font.load", "x.ttf", 0))
	assert.Error(t, err)
}

func TestRenWindowModule(t *testing.T) {
	ns := openModule(t, "renwindow", hostfuncs.RenWindowModule)

	out, err := ns.Call("create", "main")
	require.NoError(t, err)
	win := out[0].(hostfuncs.Object)
	assert.Equal(t, hostfuncs.WindowClass, win.Class)

	out, err = ns.CallMethod(win, "get_size")
	require.NoError(t, err)
	assert.Equal(t, []any{800, 600}, out)

	_, err = ns.CallMethod(win, "set_size", 1024, 768)
	require.NoError(t, err)
	out, err = ns.CallMethod(win, "get_size")
	require.NoError(t, err)
	assert.Equal(t, []any{1024, 768}, out)

	_, err = ns.CallMethod(win, "set_title", "other")
	require.NoError(t, err)
	out, err = ns.CallMethod(win, "get_title")
	require.NoError(t, err)
	assert.Equal(t, []any{"other"}, out)

	_, err = ns.CallMethod(win, "close")
	require.NoError(t, err)
	_, err = ns.CallMethod(win, "get_title")
	assert.EqualError(t, err, "window is closed")
}
