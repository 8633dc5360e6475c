package corefile

import "testing"

func TestTypeDirectoryRegisterAndLookup(t *testing.T) {
	d := NewTypeDirectory()

	d.RegisterType(0x1000, "type")
	d.RegisterType(0x2000, "")
	d.RegisterType(0x1800, "dict")

	if !d.HasType(0x1000) {
		t.Errorf("HasType(0x1000)=false, want true")
	}
	if d.HasType(0x1234) {
		t.Errorf("HasType(0x1234)=true, want false")
	}
	if got := d.GetTypeName(0x1000); got != "type" {
		t.Errorf("GetTypeName(0x1000)=%q, want %q", got, "type")
	}
	if got := d.GetTypeName(0x2000); got != "" {
		t.Errorf("GetTypeName(0x2000)=%q, want empty", got)
	}
	if got := d.Len(); got != 3 {
		t.Errorf("Len()=%d, want 3", got)
	}

	// A later RegisterType with a name fills in a name registered empty.
	d.RegisterType(0x2000, "some_dynamic_type")
	if got := d.GetTypeName(0x2000); got != "some_dynamic_type" {
		t.Errorf("GetTypeName(0x2000) after fill-in=%q, want %q", got, "some_dynamic_type")
	}
	if got := d.Len(); got != 3 {
		t.Errorf("Len() after fill-in=%d, want 3 (no new address)", got)
	}

	addrs := d.Addresses()
	want := []uint64{0x1000, 0x1800, 0x2000}
	if len(addrs) != len(want) {
		t.Fatalf("Addresses()=%v, want %v", addrs, want)
	}
	for i := range want {
		if addrs[i] != want[i] {
			t.Errorf("Addresses()[%d]=0x%x, want 0x%x", i, addrs[i], want[i])
		}
	}
}
