package hostfuncs

import (
	"context"
	"errors"
	"sync"
)

// WindowClass is the class of window objects.
const WindowClass = "renwindow.Window"

// RenWindowModule exposes headless windows: they track a title and a size
// but own no native surface.
var RenWindowModule = OpenFunc(openRenWindow)

// Window is a headless window.
type Window struct {
	title  string
	width  int
	height int
	mu     sync.Mutex
	closed bool
}

var errWindowClosed = errors.New("window is closed")

func openRenWindow(ns Namespace) error {
	ns.SetClass(WindowClass, map[string]Func{
		"get_size":  windowGetSize,
		"set_size":  windowSetSize,
		"get_title": windowGetTitle,
		"set_title": windowSetTitle,
		"close":     windowClose,
	})
	ns.SetFunc("create", windowCreate)
	return nil
}

func windowCreate(_ context.Context, args Args) ([]any, error) {
	title, err := args.OptString(1, "")
	if err != nil {
		return nil, err
	}
	w, err := args.OptInt(2, 800)
	if err != nil {
		return nil, err
	}
	h, err := args.OptInt(3, 600)
	if err != nil {
		return nil, err
	}
	return []any{Object{Class: WindowClass, Value: &Window{title: title, width: w, height: h}}}, nil
}

// withWindow runs fn with the receiver locked, failing once it is closed.
func withWindow(args Args, fn func(w *Window) ([]any, error)) ([]any, error) {
	w, err := Self[*Window](args, WindowClass)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errWindowClosed
	}
	return fn(w)
}

func windowGetSize(_ context.Context, args Args) ([]any, error) {
	return withWindow(args, func(w *Window) ([]any, error) {
		return []any{w.width, w.height}, nil
	})
}

func windowSetSize(_ context.Context, args Args) ([]any, error) {
	width, err := args.Int(2)
	if err != nil {
		return nil, err
	}
	height, err := args.Int(3)
	if err != nil {
		return nil, err
	}
	return withWindow(args, func(w *Window) ([]any, error) {
		w.width, w.height = width, height
		return nil, nil
	})
}

func windowGetTitle(_ context.Context, args Args) ([]any, error) {
	return withWindow(args, func(w *Window) ([]any, error) {
		return []any{w.title}, nil
	})
}

func windowSetTitle(_ context.Context, args Args) ([]any, error) {
	title, err := args.String(2)
	if err != nil {
		return nil, err
	}
	return withWindow(args, func(w *Window) ([]any, error) {
		w.title = title
		return nil, nil
	})
}

func windowClose(_ context.Context, args Args) ([]any, error) {
	return withWindow(args, func(w *Window) ([]any, error) {
		w.closed = true
		return nil, nil
	})
}
