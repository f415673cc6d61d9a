package hostfuncs

// Bundle is a pre-configured, ordered group of module descriptors.
type Bundle interface {
	// Descriptors returns the descriptors in load order.
	Descriptors() []ModuleDescriptor
}

// staticBundle implements Bundle with a fixed list of descriptors.
type staticBundle struct {
	descriptors []ModuleDescriptor
}

func (b *staticBundle) Descriptors() []ModuleDescriptor {
	out := make([]ModuleDescriptor, len(b.descriptors))
	copy(out, b.descriptors)
	return out
}

// NewBundle returns a bundle holding the given descriptors in order.
func NewBundle(descriptors ...ModuleDescriptor) Bundle {
	return &staticBundle{descriptors: descriptors}
}

// CoreBundle returns the modules present in every build, in load order.
func CoreBundle() Bundle {
	return NewBundle(
		ModuleDescriptor{Name: "system", Entry: SystemModule},
		ModuleDescriptor{Name: "renderer", Entry: RendererModule},
		ModuleDescriptor{Name: "renwindow", Entry: RenWindowModule},
		ModuleDescriptor{Name: "regex", Entry: RegexModule},
		ModuleDescriptor{Name: "process", Entry: ProcessModule},
		ModuleDescriptor{Name: "thread", Entry: ThreadModule},
		ModuleDescriptor{Name: "dirmonitor", Entry: DirMonitorModule},
		ModuleDescriptor{Name: "utf8extra", Entry: UTF8ExtraModule},
		ModuleDescriptor{Name: "encoding", Entry: EncodingModule},
		ModuleDescriptor{Name: "shmem", Entry: ShmemModule},
	)
}

// Variant names.
const (
	VariantCompat53 = "compat53"
	VariantBit      = "bit"
)

// Variant is a named tail of descriptors selected once per build. The core
// bundle is followed by exactly one variant.
type Variant struct {
	name        string
	descriptors []ModuleDescriptor
}

// NewVariant returns a variant tail.
func NewVariant(name string, descriptors ...ModuleDescriptor) Variant {
	return Variant{name: name, descriptors: descriptors}
}

// Name returns the variant name.
func (v Variant) Name() string {
	return v.name
}

// Descriptors returns the tail descriptors in load order.
func (v Variant) Descriptors() []ModuleDescriptor {
	out := make([]ModuleDescriptor, len(v.descriptors))
	copy(out, v.descriptors)
	return out
}

// Compat53Variant returns the Lua 5.3 compatibility shims used with the
// Lua 5.1 backend.
func Compat53Variant() Variant {
	return NewVariant(VariantCompat53,
		ModuleDescriptor{Name: "compat53.string", Entry: Compat53StringModule},
		ModuleDescriptor{Name: "compat53.table", Entry: Compat53TableModule},
		ModuleDescriptor{Name: "compat53.utf8", Entry: Compat53UTF8Module},
	)
}

// BitVariant returns the LuaJIT bit operations shim used with the Lua 5.2
// backend.
func BitVariant() Variant {
	return NewVariant(VariantBit,
		ModuleDescriptor{Name: "bit", Entry: BitModule},
	)
}

// Variants returns every known variant tail, in declaration order.
func Variants() []Variant {
	return []Variant{Compat53Variant(), BitVariant()}
}
