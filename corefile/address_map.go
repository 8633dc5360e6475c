package corefile

import "encoding/binary"

// AddressMap is a random-access byte reader over a core dump's virtual
// address space. It is the concrete Virtual Address Map collaborator that
// package pyresolve is built against.
//
// All reads accept a caller-supplied fallback value to return when the
// requested bytes are not mapped (or only partially mapped). No read ever
// returns an error: out-of-range reads are frequent in speculative parsing
// and always recoverable by validation in the caller.
type AddressMap struct {
	segments    dataSegments
	pointerSize int // W, in bytes: 4 or 8
	order       binary.ByteOrder
}

// NewAddressMap builds an AddressMap with the given pointer width and byte
// order. Segments are added with AddSegment.
func NewAddressMap(pointerSize int, order binary.ByteOrder) *AddressMap {
	if pointerSize != 4 && pointerSize != 8 {
		panic("corefile: pointer size must be 4 or 8")
	}
	return &AddressMap{pointerSize: pointerSize, order: order}
}

// AddSegment registers a range of readable (and possibly writable) memory.
// Segments must not overlap any segment already added.
func (m *AddressMap) AddSegment(addr uint64, data []byte, writable, readable bool) error {
	return m.segments.insert(dataSegment{addr: addr, data: data, writable: writable, readable: readable})
}

// PointerSize returns W, the machine word size in bytes for this dump.
func (m *AddressMap) PointerSize() int { return m.pointerSize }

// ByteOrder returns the dump's byte order, needed by callers that decode
// raw bytes returned from FindMappedMemoryImage directly rather than going
// through ReadOffset/ReadU32.
func (m *AddressMap) ByteOrder() binary.ByteOrder { return m.order }

// ReadOffset reads one machine word at addr. Returns fallback if addr is not
// fully mapped.
func (m *AddressMap) ReadOffset(addr uint64, fallback uint64) uint64 {
	seg, ok := m.segments.find(addr)
	if !ok {
		return fallback
	}
	sub, ok := seg.slice(addr, uint64(m.pointerSize))
	if !ok {
		return fallback
	}
	if m.pointerSize == 8 {
		return m.order.Uint64(sub.data)
	}
	return uint64(m.order.Uint32(sub.data))
}

// ReadU32 reads a little/big-endian (per the map's byte order) uint32 at
// addr. Returns fallback if addr is not fully mapped.
func (m *AddressMap) ReadU32(addr uint64, fallback uint32) uint32 {
	seg, ok := m.segments.find(addr)
	if !ok {
		return fallback
	}
	sub, ok := seg.slice(addr, 4)
	if !ok {
		return fallback
	}
	return m.order.Uint32(sub.data)
}

// FindMappedMemoryImage returns the bytes of the contiguous mapped segment
// containing addr, starting at addr, plus true. Returns false if addr is
// not mapped. The returned slice may be shorter than the caller wants if
// the segment ends before the caller's region of interest; callers must
// check length before indexing.
func (m *AddressMap) FindMappedMemoryImage(addr uint64) ([]byte, bool) {
	seg, ok := m.segments.find(addr)
	if !ok {
		return nil, false
	}
	sub, ok := seg.slice(addr, seg.size()-(addr-seg.addr))
	if !ok {
		return nil, false
	}
	return sub.data, true
}

// Limit extends addr to the end of the contiguous mapped region with the
// same permissions as the byte at addr. Module directories sometimes
// underreport a range's true upper bound; this lets callers recover the
// rest of the region.
func (m *AddressMap) Limit(addr uint64) uint64 {
	seg, ok := m.segments.find(addr)
	if !ok {
		return addr
	}
	limit := seg.addr + seg.size()
	for {
		next, ok := m.segments.find(limit)
		if !ok || next.addr != limit || next.writable != seg.writable || next.readable != seg.readable {
			return limit
		}
		limit = next.addr + next.size()
	}
}
