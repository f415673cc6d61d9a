package hostfuncs

import (
	"fmt"
	"sync"
)

// ModuleDescriptor names one native module and the entry point that fills
// its namespace table.
type ModuleDescriptor struct {
	Entry EntryPoint
	Name  string
}

// Describe builds a ModuleDescriptor from a function entry point.
func Describe(name string, open func(ns Namespace) error) ModuleDescriptor {
	return ModuleDescriptor{Name: name, Entry: OpenFunc(open)}
}

// DescriptorSet is an immutable, ordered collection of module descriptors.
// Once created via NewDescriptorSet, descriptors cannot be added, removed or
// reordered. This ensures thread safety and lock-free reads.
type DescriptorSet struct {
	index   map[string]int
	variant string
	entries []ModuleDescriptor
}

// setBuilder accumulates configuration during set construction.
type setBuilder struct {
	index   map[string]int
	variant string
	entries []ModuleDescriptor
	errors  []error
}

// SetOption is a functional option for configuring a DescriptorSet.
type SetOption func(*setBuilder)

// NewDescriptorSet creates an immutable DescriptorSet with the given options.
// Descriptors keep the order in which options add them. Returns the first
// construction error: an empty or duplicate name, a nil entry point, or a
// second variant tail.
//
// Example usage:
//
//	set, err := NewDescriptorSet(
//	    WithBundle(CoreBundle()),
//	    WithVariant(ActiveVariant()),
//	)
func NewDescriptorSet(opts ...SetOption) (*DescriptorSet, error) {
	b := &setBuilder{
		index: make(map[string]int),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	entries := make([]ModuleDescriptor, len(b.entries))
	copy(entries, b.entries)

	return &DescriptorSet{
		entries: entries,
		index:   b.index,
		variant: b.variant,
	}, nil
}

// Descriptors returns the descriptors in load order.
func (s *DescriptorSet) Descriptors() []ModuleDescriptor {
	result := make([]ModuleDescriptor, len(s.entries))
	copy(result, s.entries)
	return result
}

// Names returns the module names in load order.
func (s *DescriptorSet) Names() []string {
	names := make([]string, len(s.entries))
	for i, d := range s.entries {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of descriptors.
func (s *DescriptorSet) Len() int {
	return len(s.entries)
}

// Has returns true if a module with the given name is in the set.
func (s *DescriptorSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Lookup returns the descriptor registered under name and its position.
func (s *DescriptorSet) Lookup(name string) (ModuleDescriptor, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return ModuleDescriptor{}, -1, false
	}
	return s.entries[i], i, true
}

// Variant returns the name of the variant tail, or "" when none was applied.
func (s *DescriptorSet) Variant() string {
	return s.variant
}

// addDescriptor appends a descriptor to the set under construction.
func (b *setBuilder) addDescriptor(d ModuleDescriptor) error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if d.Entry == nil {
		return fmt.Errorf("%w: %q", ErrNilEntryPoint, d.Name)
	}
	if _, exists := b.index[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
	}
	b.index[d.Name] = len(b.entries)
	b.entries = append(b.entries, d)
	return nil
}

// WithDescriptor appends a single descriptor.
func WithDescriptor(d ModuleDescriptor) SetOption {
	return func(b *setBuilder) {
		if err := b.addDescriptor(d); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithEntryPoint appends a descriptor built from a name and an entry point.
func WithEntryPoint(name string, entry EntryPoint) SetOption {
	return WithDescriptor(ModuleDescriptor{Name: name, Entry: entry})
}

// WithBundle appends every descriptor of a bundle, in bundle order.
func WithBundle(bundle Bundle) SetOption {
	return func(b *setBuilder) {
		for _, d := range bundle.Descriptors() {
			if err := b.addDescriptor(d); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithVariant appends a variant tail. A set carries at most one.
func WithVariant(v Variant) SetOption {
	return func(b *setBuilder) {
		if b.variant != "" {
			b.errors = append(b.errors, fmt.Errorf("%w: %q then %q", ErrVariantSet, b.variant, v.Name()))
			return
		}
		if v.Name() == "" {
			b.errors = append(b.errors, ErrNoVariant)
			return
		}
		b.variant = v.Name()
		WithBundle(v)(b)
	}
}

var activeSet = sync.OnceValue(func() *DescriptorSet {
	set, err := NewDescriptorSet(
		WithBundle(CoreBundle()),
		WithVariant(ActiveVariant()),
	)
	if err != nil {
		panic(fmt.Sprintf("hostfuncs: invalid built-in descriptor set: %v", err))
	}
	return set
})

// ActiveSet returns the descriptor set compiled into this binary: the core
// bundle followed by the variant tail of the active backend. It is built on
// first use and never changes afterwards.
func ActiveSet() *DescriptorSet {
	return activeSet()
}
