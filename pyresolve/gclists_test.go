package pyresolve

import (
	"encoding/binary"
	"testing"

	"github.com/zhigao/pymortem/corefile"
)

// When the version is unknown, the header size must be settled by trying
// the legacy four-word layout first and falling back to the three-word one.
func TestFindNonEmptyGCListsTrialHeaderSize(t *testing.T) {
	order := binary.LittleEndian
	const (
		base     = 0x1000
		limit    = 0x2000
		head     = 0x1100
		node     = 0x1200
		typeType = 0x1800
	)
	img := make([]byte, limit-base)
	put := func(addr, v uint64) { order.PutUint64(img[addr-base:], v) }

	// A single-node circular list, and a type-tagged object at the
	// three-word header offset only.
	put(head, node)
	put(head+8, node)
	put(node, head)
	put(node+8, head)
	put(node+32, typeType) // three-word header: object's type field
	put(typeType+8, typeType)

	addrMap := corefile.NewAddressMap(8, order)
	if err := addrMap.AddSegment(base, img, true, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	r := New(nil, addrMap, nil, corefile.NewTypeDirectory())
	r.w = 8
	r.typeType = typeType
	r.version = VersionUnknown

	r.findNonEmptyGarbageCollectionLists(base, limit)

	if len(r.nonEmptyGCLists) != 1 || r.nonEmptyGCLists[0] != head {
		t.Errorf("nonEmptyGCLists=%v, want [0x%x]", r.nonEmptyGCLists, uint64(head))
	}
	if r.gcHeaderSize != 24 {
		t.Errorf("gcHeaderSize=%d, want 24 from the three-word trial", r.gcHeaderSize)
	}
}

func TestFindNonEmptyGCListsSkipsEmptyList(t *testing.T) {
	order := binary.LittleEndian
	const (
		base = 0x1000
		head = 0x1100
	)
	img := make([]byte, 0x1000)
	// An empty generation points at itself in both directions.
	order.PutUint64(img[head-base:], head)
	order.PutUint64(img[head-base+8:], head)

	addrMap := corefile.NewAddressMap(8, order)
	if err := addrMap.AddSegment(base, img, true, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	r := New(nil, addrMap, nil, corefile.NewTypeDirectory())
	r.w = 8
	r.version = VersionV3

	r.findNonEmptyGarbageCollectionLists(base, base+0x1000)

	if len(r.nonEmptyGCLists) != 0 {
		t.Errorf("nonEmptyGCLists=%v, want none for an empty generation", r.nonEmptyGCLists)
	}
	if r.gcHeaderSize != 24 {
		t.Errorf("gcHeaderSize=%d, want 24 fixed by the version alone", r.gcHeaderSize)
	}
}
