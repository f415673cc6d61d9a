package hostfuncs

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
)

// Resources tracks handles owned by one interpreter, such as child
// processes and directory monitors, so closing the interpreter releases
// them. A nil *Resources tracks nothing.
type Resources struct {
	mu      sync.Mutex
	closers map[int]io.Closer
	next    int
	closed  bool
}

// NewResources returns an empty tracker.
func NewResources() *Resources {
	return &Resources{closers: make(map[int]io.Closer)}
}

// Track registers c and returns a function that forgets it again. Once r
// is closed, c is closed right away.
func (r *Resources) Track(c io.Closer) (forget func()) {
	if r == nil {
		return func() {}
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = c.Close()
		return func() {}
	}
	id := r.next
	r.next++
	r.closers[id] = c
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.closers, id)
		r.mu.Unlock()
	}
}

// Len returns the number of tracked handles.
func (r *Resources) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closers)
}

// Close closes every tracked handle, newest first, and joins their errors.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ids := make([]int, 0, len(r.closers))
	for id := range r.closers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	closers := make([]io.Closer, len(ids))
	for i, id := range ids {
		closers[i] = r.closers[id]
	}
	clear(r.closers)
	r.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type resourcesKey struct{}

// WithResources attaches r to ctx.
func WithResources(ctx context.Context, r *Resources) context.Context {
	return context.WithValue(ctx, resourcesKey{}, r)
}

// ResourcesFrom returns the tracker attached to ctx, or nil.
func ResourcesFrom(ctx context.Context) *Resources {
	r, _ := ctx.Value(resourcesKey{}).(*Resources)
	return r
}
