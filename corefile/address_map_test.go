package corefile

import (
	"encoding/binary"
	"testing"
)

func newTestAddressMap(t *testing.T) *AddressMap {
	t.Helper()
	m := NewAddressMap(8, binary.LittleEndian)

	buf := make([]byte, 64)
	binary.LittleEndian.PutUint64(buf[0:8], 0xdeadbeef)
	binary.LittleEndian.PutUint64(buf[8:16], 0x12345678)
	if err := m.AddSegment(0x1000, buf, true, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	buf2 := make([]byte, 32)
	if err := m.AddSegment(0x1000+uint64(len(buf)), buf2, false, true); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	return m
}

func TestAddressMapReadOffset(t *testing.T) {
	m := newTestAddressMap(t)

	if got := m.ReadOffset(0x1000, 0xbad); got != 0xdeadbeef {
		t.Errorf("ReadOffset(0x1000)=0x%x, want 0xdeadbeef", got)
	}
	if got := m.ReadOffset(0x1008, 0xbad); got != 0x12345678 {
		t.Errorf("ReadOffset(0x1008)=0x%x, want 0x12345678", got)
	}
	if got := m.ReadOffset(0x9999, 0xbad); got != 0xbad {
		t.Errorf("ReadOffset(unmapped)=0x%x, want fallback 0xbad", got)
	}
	// Straddles the end of a segment: not fully mapped, must fall back.
	if got := m.ReadOffset(0x1000+64-4, 0xbad); got != 0xbad {
		t.Errorf("ReadOffset(straddling end)=0x%x, want fallback 0xbad", got)
	}
}

func TestAddressMapLimit(t *testing.T) {
	m := newTestAddressMap(t)

	// The two segments are adjacent but differ in writability, so Limit
	// must stop at the boundary between them.
	if got, want := m.Limit(0x1000), uint64(0x1000+64); got != want {
		t.Errorf("Limit(0x1000)=0x%x, want 0x%x", got, want)
	}
	if got, want := m.Limit(0x1000+64), uint64(0x1000+64+32); got != want {
		t.Errorf("Limit(second segment)=0x%x, want 0x%x", got, want)
	}
}

func TestAddressMapFindMappedMemoryImage(t *testing.T) {
	m := newTestAddressMap(t)

	image, ok := m.FindMappedMemoryImage(0x1004)
	if !ok {
		t.Fatalf("FindMappedMemoryImage(0x1004) failed")
	}
	if len(image) != 60 {
		t.Errorf("len(image)=%d, want 60", len(image))
	}

	if _, ok := m.FindMappedMemoryImage(0x5); ok {
		t.Errorf("FindMappedMemoryImage(unmapped) succeeded, want failure")
	}
}
