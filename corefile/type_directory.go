package corefile

import "sort"

// TypeDirectory is an append-mostly registry mapping discovered type-object
// addresses to their names. Names may be registered empty (when an address
// is known to be a type object but its name could not be recovered) and
// filled in later by RegisterType being called again with a non-empty name.
//
// Backed by a sorted slice plus a map: addresses are inserted once during
// discovery and looked up by binary search or direct map access forever
// after.
type TypeDirectory struct {
	addrs []uint64 // kept sorted, for iteration in address order
	names map[uint64]string
}

// NewTypeDirectory returns an empty TypeDirectory.
func NewTypeDirectory() *TypeDirectory {
	return &TypeDirectory{names: make(map[uint64]string)}
}

// RegisterType records typeObject as a known type, with the given name (may
// be ""). If typeObject was already registered with an empty name and name
// is non-empty, the name is updated; an existing non-empty name is never
// overwritten.
func (d *TypeDirectory) RegisterType(typeObject uint64, name string) {
	existing, had := d.names[typeObject]
	if !had {
		k := sort.Search(len(d.addrs), func(k int) bool { return d.addrs[k] >= typeObject })
		d.addrs = append(d.addrs, 0)
		copy(d.addrs[k+1:], d.addrs[k:])
		d.addrs[k] = typeObject
		d.names[typeObject] = name
		return
	}
	if existing == "" && name != "" {
		d.names[typeObject] = name
	}
}

// HasType reports whether typeObject has been registered.
func (d *TypeDirectory) HasType(typeObject uint64) bool {
	_, ok := d.names[typeObject]
	return ok
}

// GetTypeName returns the registered name for typeObject, or "" if unknown
// or registered without a name.
func (d *TypeDirectory) GetTypeName(typeObject uint64) string {
	return d.names[typeObject]
}

// Addresses returns all registered type-object addresses in ascending order.
func (d *TypeDirectory) Addresses() []uint64 {
	out := make([]uint64, len(d.addrs))
	copy(out, d.addrs)
	return out
}

// Len reports the number of registered types.
func (d *TypeDirectory) Len() int { return len(d.addrs) }
