package hostfuncs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/wireformat"
)

// SegmentClass is the class of shared memory segments.
const SegmentClass = "shmem.Segment"

// ShmemModule exposes named key/value segments shared by every interpreter
// in the process, including those started by the thread module.
var ShmemModule = OpenFunc(openShmem)

// Segment is a bounded key/value store. Values are held in wire form and
// copied on every read.
type Segment struct {
	entries  map[string]wireformat.ValueWire
	name     string
	mu       sync.RWMutex
	capacity int
}

var segments = struct {
	m  map[string]*Segment
	mu sync.Mutex
}{m: make(map[string]*Segment)}

// OpenSegment returns the segment called name, creating it with the given
// capacity on first use. The capacity of an existing segment is kept.
func OpenSegment(name string, capacity int) (*Segment, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if capacity <= 0 {
		return nil, &derrors.ConfigError{Field: "capacity", Err: fmt.Errorf("must be positive, got %d", capacity)}
	}
	segments.mu.Lock()
	defer segments.mu.Unlock()
	s, ok := segments.m[name]
	if !ok {
		s = &Segment{name: name, capacity: capacity, entries: make(map[string]wireformat.ValueWire)}
		segments.m[name] = s
	}
	return s, nil
}

// Set stores value under key; a nil value removes it. Setting a new key in
// a full segment fails.
func (s *Segment) Set(key string, value any) error {
	if value == nil {
		s.Remove(key)
		return nil
	}
	w, err := wireformat.FromValue(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
		return &derrors.CapacityError{Resource: fmt.Sprintf("shmem segment '%s'", s.name), Limit: s.capacity}
	}
	s.entries[key] = w
	return nil
}

// Get returns a copy of the value stored under key.
func (s *Segment) Get(key string) (any, bool, error) {
	s.mu.RLock()
	w, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, err := w.ToValue()
	return v, true, err
}

// Remove deletes key.
func (s *Segment) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear deletes every key.
func (s *Segment) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]wireformat.ValueWire)
}

// Len returns the number of stored keys.
func (s *Segment) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Capacity returns the maximum number of keys.
func (s *Segment) Capacity() int {
	return s.capacity
}

// Keys returns the stored keys in sorted order.
func (s *Segment) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func openShmem(ns Namespace) error {
	ns.SetClass(SegmentClass, map[string]Func{
		"set":      segmentSet,
		"get":      segmentGet,
		"remove":   segmentRemove,
		"clear":    segmentClear,
		"size":     segmentSize,
		"capacity": segmentCapacity,
		"keys":     segmentKeys,
	})
	ns.SetFunc("open", func(ctx context.Context, args Args) ([]any, error) {
		name, err := args.String(1)
		if err != nil {
			return nil, err
		}
		capacity, err := args.OptInt(2, LimitsFrom(ctx).ShmemCapacity)
		if err != nil {
			return nil, err
		}
		s, err := OpenSegment(name, capacity)
		if err != nil {
			return []any{nil, err.Error()}, nil
		}
		return []any{Object{Class: SegmentClass, Value: s}}, nil
	})
	return nil
}

func segmentSet(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	key, err := args.String(2)
	if err != nil {
		return nil, err
	}
	if err := s.Set(key, args.Get(3)); err != nil {
		return []any{false, err.Error()}, nil
	}
	return []any{true}, nil
}

func segmentGet(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	key, err := args.String(2)
	if err != nil {
		return nil, err
	}
	v, _, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func segmentRemove(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	key, err := args.String(2)
	if err != nil {
		return nil, err
	}
	s.Remove(key)
	return nil, nil
}

func segmentClear(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	s.Clear()
	return nil, nil
}

func segmentSize(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	return []any{s.Len()}, nil
}

func segmentCapacity(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	return []any{s.Capacity()}, nil
}

func segmentKeys(_ context.Context, args Args) ([]any, error) {
	s, err := Self[*Segment](args, SegmentClass)
	if err != nil {
		return nil, err
	}
	keys := s.Keys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return []any{out}, nil
}
