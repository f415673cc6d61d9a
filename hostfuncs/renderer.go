package hostfuncs

import (
	"context"
	"math"
	"sync"
)

// Renderer classes.
const (
	FontClass = "renderer.Font"
)

// RendererModule exposes a headless renderer. Draw calls are recorded as
// commands between begin_frame and end_frame, which returns them.
var RendererModule = OpenFunc(openRenderer)

// Color is an RGBA color; scripts pass it as {r, g, b, a}.
type Color struct {
	R, G, B, A int
}

// Rect is an integer rectangle.
type Rect struct {
	X, Y, W, H int
}

// DrawCommand is one recorded draw call.
type DrawCommand struct {
	Op    string
	Text  string
	Rect  Rect
	Color Color
}

// Font holds the metrics of a loaded font. Glyph advance is derived from the
// cell width of each character.
type Font struct {
	Path string
	Size float64
}

// Width returns the advance of text in pixels.
func (f *Font) Width(text string) int {
	return StringWidth(text) * f.cellWidth()
}

// Height returns the line height in pixels.
func (f *Font) Height() int {
	return int(math.Round(f.Size * 1.25))
}

func (f *Font) cellWidth() int {
	return int(math.Ceil(f.Size / 2))
}

// Surface records the draw commands of the current frame.
type Surface struct {
	commands []DrawCommand
	clip     Rect
	width    int
	height   int
	mu       sync.Mutex
	inFrame  bool
}

func openRenderer(ns Namespace) error {
	s := &Surface{width: 800, height: 600}
	s.clip = Rect{W: s.width, H: s.height}

	ns.SetClass(FontClass, map[string]Func{
		"get_width":  fontGetWidth,
		"get_height": fontGetHeight,
		"get_size":   fontGetSize,
		"set_size":   fontSetSize,
		"copy":       fontCopy,
	})
	ns.SetValue("font", map[string]any{
		"load": Func(fontLoad),
	})
	ns.SetFunc("begin_frame", s.beginFrame)
	ns.SetFunc("end_frame", s.endFrame)
	ns.SetFunc("get_size", s.getSize)
	ns.SetFunc("set_clip_rect", s.setClipRect)
	ns.SetFunc("draw_rect", s.drawRect)
	ns.SetFunc("draw_text", s.drawText)
	return nil
}

func (s *Surface) beginFrame(_ context.Context, args Args) ([]any, error) {
	w, err := args.OptInt(1, s.width)
	if err != nil {
		return nil, err
	}
	h, err := args.OptInt(2, s.height)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = w, h
	s.clip = Rect{W: w, H: h}
	s.commands = s.commands[:0]
	s.inFrame = true
	return nil, nil
}

func (s *Surface) endFrame(_ context.Context, _ Args) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(s.commands))
	for _, c := range s.commands {
		cmd := map[string]any{
			"op":    c.Op,
			"x":     c.Rect.X,
			"y":     c.Rect.Y,
			"w":     c.Rect.W,
			"h":     c.Rect.H,
			"color": []any{c.Color.R, c.Color.G, c.Color.B, c.Color.A},
		}
		if c.Text != "" {
			cmd["text"] = c.Text
		}
		out = append(out, cmd)
	}
	s.commands = nil
	s.inFrame = false
	return []any{out}, nil
}

func (s *Surface) getSize(_ context.Context, _ Args) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []any{s.width, s.height}, nil
}

func (s *Surface) setClipRect(_ context.Context, args Args) ([]any, error) {
	r, err := rectArgs(args, 1)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clip = r
	return nil, nil
}

func (s *Surface) drawRect(_ context.Context, args Args) ([]any, error) {
	r, err := rectArgs(args, 1)
	if err != nil {
		return nil, err
	}
	c, err := colorArg(args, 5)
	if err != nil {
		return nil, err
	}
	s.record(DrawCommand{Op: "rect", Rect: r, Color: c})
	return nil, nil
}

func (s *Surface) drawText(_ context.Context, args Args) ([]any, error) {
	font, err := Arg[*Font](args, 1, FontClass)
	if err != nil {
		return nil, err
	}
	text, err := args.String(2)
	if err != nil {
		return nil, err
	}
	x, err := args.Number(3)
	if err != nil {
		return nil, err
	}
	y, err := args.Number(4)
	if err != nil {
		return nil, err
	}
	c, err := colorArg(args, 5)
	if err != nil {
		return nil, err
	}
	w := font.Width(text)
	s.record(DrawCommand{
		Op:    "text",
		Text:  text,
		Rect:  Rect{X: int(x), Y: int(y), W: w, H: font.Height()},
		Color: c,
	})
	return []any{x + float64(w)}, nil
}

// record stores c when it intersects the clip rectangle.
func (s *Surface) record(c DrawCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !intersects(c.Rect, s.clip) {
		return
	}
	s.commands = append(s.commands, c)
}

func intersects(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func rectArgs(args Args, first int) (Rect, error) {
	var v [4]int
	for i := range v {
		n, err := args.Number(first + i)
		if err != nil {
			return Rect{}, err
		}
		v[i] = int(n)
	}
	return Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

func colorArg(args Args, n int) (Color, error) {
	if args.IsNil(n) {
		return Color{R: 255, G: 255, B: 255, A: 255}, nil
	}
	list, err := args.List(n)
	if err != nil {
		return Color{}, err
	}
	c := [4]int{0, 0, 0, 255}
	for i := 0; i < len(list) && i < 4; i++ {
		part := NewArgs(args.Func, list[i])
		v, err := part.Number(1)
		if err != nil {
			return Color{}, &ArgError{Func: args.Func, Index: n, Expected: "color components must be numbers"}
		}
		c[i] = int(v)
	}
	return Color{R: c[0], G: c[1], B: c[2], A: c[3]}, nil
}

func fontLoad(_ context.Context, args Args) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	size, err := args.Number(2)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, &ArgError{Func: args.Func, Index: 2, Expected: "font size must be positive"}
	}
	return []any{Object{Class: FontClass, Value: &Font{Path: path, Size: size}}}, nil
}

func fontGetWidth(_ context.Context, args Args) ([]any, error) {
	f, err := Self[*Font](args, FontClass)
	if err != nil {
		return nil, err
	}
	text, err := args.String(2)
	if err != nil {
		return nil, err
	}
	return []any{f.Width(text)}, nil
}

func fontGetHeight(_ context.Context, args Args) ([]any, error) {
	f, err := Self[*Font](args, FontClass)
	if err != nil {
		return nil, err
	}
	return []any{f.Height()}, nil
}

func fontGetSize(_ context.Context, args Args) ([]any, error) {
	f, err := Self[*Font](args, FontClass)
	if err != nil {
		return nil, err
	}
	return []any{f.Size}, nil
}

func fontSetSize(_ context.Context, args Args) ([]any, error) {
	f, err := Self[*Font](args, FontClass)
	if err != nil {
		return nil, err
	}
	size, err := args.Number(2)
	if err != nil {
		return nil, err
	}
	f.Size = size
	return nil, nil
}

func fontCopy(_ context.Context, args Args) ([]any, error) {
	f, err := Self[*Font](args, FontClass)
	if err != nil {
		return nil, err
	}
	size, err := args.OptNumber(2, f.Size)
	if err != nil {
		return nil, err
	}
	return []any{Object{Class: FontClass, Value: &Font{Path: f.Path, Size: size}}}, nil
}
