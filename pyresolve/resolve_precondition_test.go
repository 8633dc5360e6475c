package pyresolve_test

import (
	"encoding/binary"
	"testing"

	"github.com/zhigao/pymortem/corefile"
	"github.com/zhigao/pymortem/pyresolve"
)

func mustPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic, got none")
		}
	}()
	f()
}

func TestResolvePanicsOnUnresolvedModuleDirectory(t *testing.T) {
	moduleDir := corefile.NewModuleDirectory() // never MarkResolved
	addrMap := corefile.NewAddressMap(8, binary.LittleEndian)
	r := pyresolve.New(moduleDir, addrMap, corefile.NewPartition(), corefile.NewTypeDirectory())

	mustPanic(t, func() { r.Resolve() })
}

func TestResolvePanicsOnSecondCall(t *testing.T) {
	moduleDir := corefile.NewModuleDirectory()
	moduleDir.MarkResolved()
	addrMap := corefile.NewAddressMap(8, binary.LittleEndian)
	r := pyresolve.New(moduleDir, addrMap, corefile.NewPartition(), corefile.NewTypeDirectory())

	r.Resolve()
	mustPanic(t, func() { r.Resolve() })
}

func TestResolveWithNoModulesLeavesResolverEmpty(t *testing.T) {
	moduleDir := corefile.NewModuleDirectory()
	moduleDir.MarkResolved()
	addrMap := corefile.NewAddressMap(8, binary.LittleEndian)
	r := pyresolve.New(moduleDir, addrMap, corefile.NewPartition(), corefile.NewTypeDirectory())

	r.Resolve()

	if !r.IsResolved() {
		t.Errorf("IsResolved()=false after Resolve")
	}
	if r.ArenaStructArray() != 0 {
		t.Errorf("ArenaStructArray()=0x%x, want 0", r.ArenaStructArray())
	}
	if r.VersionTag() != pyresolve.VersionUnknown {
		t.Errorf("VersionTag()=%v, want Unknown", r.VersionTag())
	}
}
