package hostfuncs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// MonitorClass is the class of directory monitors.
const MonitorClass = "dirmonitor.Monitor"

// DirMonitorModule watches directories for changes. Each watched directory
// has its own id, so the monitor mode is "multiple".
var DirMonitorModule = OpenFunc(openDirMonitor)

// Monitor collects change notifications for a set of directories until they
// are drained by Check.
type Monitor struct {
	watcher *fsnotify.Watcher
	ids     map[string]int
	paths   map[int]string
	changed map[int]struct{}
	order   []int
	errs    []error
	done    chan struct{}
	untrack func()
	mu      sync.Mutex
	nextID  int
}

var errMonitorClosed = errors.New("monitor is closed")

// NewMonitor starts a monitor with no watched directories.
func NewMonitor() (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &Monitor{
		watcher: w,
		ids:     make(map[string]int),
		paths:   make(map[int]string),
		changed: make(map[int]struct{}),
		done:    make(chan struct{}),
		nextID:  1,
	}
	go m.collect(w)
	return m, nil
}

func (m *Monitor) collect(w *fsnotify.Watcher) {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			m.record(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
		}
	}
}

// record marks the watch covering path as changed. Events name either the
// watched directory itself or one of its entries.
func (m *Monitor) record(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[filepath.Clean(path)]
	if !ok {
		id, ok = m.ids[filepath.Dir(path)]
	}
	if !ok {
		return
	}
	if _, seen := m.changed[id]; !seen {
		m.changed[id] = struct{}{}
		m.order = append(m.order, id)
	}
}

// Watch adds path and returns its id. Watching the same path twice returns
// the existing id.
func (m *Monitor) Watch(path string) (int, error) {
	path = filepath.Clean(path)
	m.mu.Lock()
	if m.watcher == nil {
		m.mu.Unlock()
		return 0, errMonitorClosed
	}
	if id, ok := m.ids[path]; ok {
		m.mu.Unlock()
		return id, nil
	}
	w := m.watcher
	m.mu.Unlock()

	if err := w.Add(path); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.ids[path] = id
	m.paths[id] = path
	return id, nil
}

// Unwatch removes the watch with the given id.
func (m *Monitor) Unwatch(id int) error {
	m.mu.Lock()
	path, ok := m.paths[id]
	if ok {
		delete(m.paths, id)
		delete(m.ids, path)
		delete(m.changed, id)
	}
	w := m.watcher
	m.mu.Unlock()
	if !ok || w == nil {
		return nil
	}
	return w.Remove(path)
}

// Check drains pending changes, calling fn once per changed watch id in the
// order the changes were first seen, and returns the errors reported by the
// watcher since the last call.
func (m *Monitor) Check(fn func(id int) error) (int, []error, error) {
	m.mu.Lock()
	order := m.order
	errs := m.errs
	m.order = nil
	m.errs = nil
	m.changed = make(map[int]struct{})
	m.mu.Unlock()

	for _, id := range order {
		if err := fn(id); err != nil {
			return 0, errs, err
		}
	}
	return len(order), errs, nil
}

// Close stops watching every directory.
func (m *Monitor) Close() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	untrack := m.untrack
	m.untrack = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	if untrack != nil {
		untrack()
	}
	err := w.Close()
	<-m.done
	return err
}

func openDirMonitor(ns Namespace) error {
	ns.SetClass(MonitorClass, map[string]Func{
		"watch":   monitorWatch,
		"unwatch": monitorUnwatch,
		"check":   monitorCheck,
		"mode":    monitorMode,
		"close":   monitorClose,
	})
	ns.SetFunc("new", func(ctx context.Context, _ Args) ([]any, error) {
		m, err := NewMonitor()
		if err != nil {
			return []any{nil, err.Error()}, nil
		}
		forget := ResourcesFrom(ctx).Track(m)
		m.mu.Lock()
		m.untrack = forget
		m.mu.Unlock()
		return []any{Object{Class: MonitorClass, Value: m}}, nil
	})
	return nil
}

func monitorWatch(_ context.Context, args Args) ([]any, error) {
	m, err := Self[*Monitor](args, MonitorClass)
	if err != nil {
		return nil, err
	}
	path, err := args.String(2)
	if err != nil {
		return nil, err
	}
	id, err := m.Watch(path)
	if err != nil {
		return []any{-1, err.Error()}, nil
	}
	return []any{id}, nil
}

func monitorUnwatch(_ context.Context, args Args) ([]any, error) {
	m, err := Self[*Monitor](args, MonitorClass)
	if err != nil {
		return nil, err
	}
	id, err := args.Int(2)
	if err != nil {
		return nil, err
	}
	if err := m.Unwatch(id); err != nil {
		return []any{false, err.Error()}, nil
	}
	return []any{true}, nil
}

// monitorCheck calls callback(id) for each changed watch and
// error_callback(message) for each watcher error, then returns the number
// of changed watches.
func monitorCheck(_ context.Context, args Args) ([]any, error) {
	m, err := Self[*Monitor](args, MonitorClass)
	if err != nil {
		return nil, err
	}
	callback, err := args.Callable(2)
	if err != nil {
		return nil, err
	}
	var onError Callable
	if !args.IsNil(3) {
		if onError, err = args.Callable(3); err != nil {
			return nil, err
		}
	}
	n, errs, err := m.Check(func(id int) error {
		_, err := callback(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if onError != nil {
		for _, e := range errs {
			if _, err := onError(e.Error()); err != nil {
				return nil, err
			}
		}
	}
	return []any{n}, nil
}

func monitorMode(context.Context, Args) ([]any, error) {
	return []any{"multiple"}, nil
}

func monitorClose(_ context.Context, args Args) ([]any, error) {
	m, err := Self[*Monitor](args, MonitorClass)
	if err != nil {
		return nil, err
	}
	return nil, m.Close()
}
