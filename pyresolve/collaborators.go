package pyresolve

import (
	"encoding/binary"

	"github.com/zhigao/pymortem/corefile"
)

// AddressMap is the Virtual Address Map collaborator: a random-access byte
// reader over the dump. *corefile.AddressMap satisfies this.
type AddressMap interface {
	// PointerSize returns W, the machine word size in bytes (4 or 8).
	PointerSize() int
	// ByteOrder returns the dump's byte order, for decoding raw bytes
	// returned by FindMappedMemoryImage.
	ByteOrder() binary.ByteOrder
	// ReadOffset reads one machine word at addr, or returns fallback if
	// addr is not mapped.
	ReadOffset(addr uint64, fallback uint64) uint64
	// ReadU32 reads a uint32 at addr, or returns fallback if addr is not
	// mapped.
	ReadU32(addr uint64, fallback uint32) uint32
	// FindMappedMemoryImage returns the bytes of the mapped region
	// starting at addr, or false if addr is unmapped.
	FindMappedMemoryImage(addr uint64) ([]byte, bool)
	// Limit extends addr to the end of the contiguous same-permission
	// region containing it.
	Limit(addr uint64) uint64
}

// ModuleDirectory is the Module Directory collaborator: the ordered set of
// loaded modules and their address ranges. *corefile.ModuleDirectory
// satisfies this.
type ModuleDirectory interface {
	IsResolved() bool
	Modules() []corefile.Module
}

// Partition is the Virtual Memory Partition collaborator: a claim registry
// for labelled address ranges. *corefile.Partition satisfies this.
type Partition interface {
	ClaimRange(base, size uint64, label string, isAnchorSource bool) bool
}

// TypeDirectory is the Type Directory collaborator: an append-mostly
// registry of type-object addresses to names. *corefile.TypeDirectory
// satisfies this.
type TypeDirectory interface {
	RegisterType(addr uint64, name string)
	HasType(addr uint64) bool
	GetTypeName(addr uint64) string
}
