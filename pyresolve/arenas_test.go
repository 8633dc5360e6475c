package pyresolve

import (
	"encoding/binary"
	"testing"

	"github.com/zhigao/pymortem/corefile"
)

func TestArenaStructFor(t *testing.T) {
	order := binary.LittleEndian
	const w = 8
	const arenaStructSize = 5*w + 8

	// Three arena descriptors, each just a pointer to its arena's base; the
	// arenas themselves don't need to be materialized for this lookup.
	const arenaStructArray = 0x5000
	arenas := []uint64{0x100000, 0x300000, 0x200000} // deliberately out of address order
	data := make([]byte, uint64(len(arenas))*arenaStructSize)
	for i, a := range arenas {
		order.PutUint64(data[uint64(i)*arenaStructSize:], a)
	}

	addrMap := corefile.NewAddressMap(w, order)
	if err := addrMap.AddSegment(arenaStructArray, data, true, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	r := New(nil, addrMap, nil, nil)
	r.w = w
	r.arenaStructArray = arenaStructArray
	r.arenaStructSize = arenaStructSize
	r.arenaSize = 0x10000
	// activeIndices sorted by arena base address ascending: 0 (0x100000),
	// 2 (0x200000), 1 (0x300000).
	r.activeIndices = []uint32{0, 2, 1}

	tests := []struct {
		addr uint64
		want uint64 // arenaStructArray + index*arenaStructSize, or 0
	}{
		{0x100000, arenaStructArray + 0*arenaStructSize},
		{0x100000 + 0x100, arenaStructArray + 0*arenaStructSize},
		{0x10FFFF, arenaStructArray + 0*arenaStructSize},
		{0x110000, 0}, // past the end of arena 0, not in any other arena
		{0x200000, arenaStructArray + 2*arenaStructSize},
		{0x300000, arenaStructArray + 1*arenaStructSize},
		{0x300000 + 0xFFFF, arenaStructArray + 1*arenaStructSize},
		{0x99, 0},
	}
	for _, test := range tests {
		if got := r.ArenaStructFor(test.addr); got != test.want {
			t.Errorf("ArenaStructFor(0x%x)=0x%x, want 0x%x", test.addr, got, test.want)
		}
	}
}
