package corefile

import "sort"

// RangeFlags describes the permission bits of one module range.
type RangeFlags int

// IsWritable reports whether the range was writable in the traced process.
const (
	IsWritable RangeFlags = 1 << iota
	IsReadable
)

// ModuleRange is one contiguous virtual-address range belonging to a module.
type ModuleRange struct {
	Base, Limit uint64
	Flags       RangeFlags
}

func (r ModuleRange) IsWritable() bool { return r.Flags&IsWritable != 0 }

// Module is one loaded shared module (a shared library or the main
// executable), with its ranges sorted ascending by Base.
type Module struct {
	Path   string
	Ranges []ModuleRange
}

// WritableRanges returns the subset of m's ranges that are writable.
func (m Module) WritableRanges() []ModuleRange {
	var out []ModuleRange
	for _, r := range m.Ranges {
		if r.IsWritable() {
			out = append(out, r)
		}
	}
	return out
}

// ModuleDirectory is an ordered mapping from module path to its writable
// (and other) address ranges, built from a core dump's load map. Modules
// appear in the order they were first observed, matching how the module
// list is recovered from a core file's PT_NOTE entries.
type ModuleDirectory struct {
	order    []string
	byPath   map[string]*Module
	resolved bool
}

// NewModuleDirectory returns an empty, unresolved ModuleDirectory.
func NewModuleDirectory() *ModuleDirectory {
	return &ModuleDirectory{byPath: make(map[string]*Module)}
}

// AddRange records that path has a mapped range [base, limit) with the
// given flags. Ranges for the same path accumulate; AddRange may be called
// multiple times for the same module as more segments are discovered.
func (d *ModuleDirectory) AddRange(path string, base, limit uint64, flags RangeFlags) {
	mod, ok := d.byPath[path]
	if !ok {
		mod = &Module{Path: path}
		d.byPath[path] = mod
		d.order = append(d.order, path)
	}
	mod.Ranges = append(mod.Ranges, ModuleRange{Base: base, Limit: limit, Flags: flags})
	sort.Slice(mod.Ranges, func(i, k int) bool { return mod.Ranges[i].Base < mod.Ranges[k].Base })
}

// MarkResolved freezes the directory; IsResolved reports true thereafter.
// Consumers must see a resolved directory before they can trust Modules'
// contents to be complete.
func (d *ModuleDirectory) MarkResolved() { d.resolved = true }

// IsResolved reports whether MarkResolved has been called.
func (d *ModuleDirectory) IsResolved() bool { return d.resolved }

// Modules returns all known modules, in discovery order.
func (d *ModuleDirectory) Modules() []Module {
	out := make([]Module, 0, len(d.order))
	for _, path := range d.order {
		out = append(out, *d.byPath[path])
	}
	return out
}
