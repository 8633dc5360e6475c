package pyresolve

import "encoding/binary"

// Version tags the interpreter's major version, as inferred from the
// module paths during identification of the library and executable.
type Version int

const (
	VersionUnknown Version = iota
	VersionV2
	VersionV3
)

func (v Version) String() string {
	switch v {
	case VersionV2:
		return "V2"
	case VersionV3:
		return "V3"
	default:
		return "Unknown"
	}
}

// UnknownOffset is the sentinel returned by offset accessors whose offset
// was never resolved. Unresolved addresses read as 0 instead; callers must
// test IsResolved and these sentinels before trusting any accessor.
const UnknownOffset = ^uint64(0)

const pythonArenaLabel = "python arena"

// Resolver reverse-engineers one interpreter's allocator and type metadata
// from a dump. See the package doc comment for its single-shot lifecycle.
type Resolver struct {
	moduleDir ModuleDirectory
	addrMap   AddressMap
	partition Partition
	typeDir   TypeDirectory

	resolved bool
	version  Version
	libPath  string
	exePath  string

	// W-derived struct layout constants for the arena descriptor, computed
	// once Resolve has identified a pointer width.
	w                  uint64
	order              binary.ByteOrder
	poolsLimitOffset   uint64
	numFreePoolsOffset uint64
	maxPoolsOffset     uint64
	availablePoolsOff  uint64
	nextOffset         uint64
	prevOffset         uint64
	arenaStructSize    uint64

	// Arena table, described by struct arena_object in obmalloc.c.
	arenaStructArray      uint64
	arenaStructArrayLimit uint64
	arenaStructCount      uint64
	numArenas             uint64
	poolSize              uint64
	arenaSize             uint64
	maxPoolsIfAligned     uint64
	maxPoolsIfNotAligned  uint64
	allArenasAligned      bool
	activeIndices         []uint32

	// Fundamental type anchors (§4.4-§4.6).
	typeType     uint64
	typeSize     uint64
	baseInType   uint64
	objectType   uint64
	dictInType   uint64
	getSetInType uint64
	dictType     uint64

	keysInDict        uint64
	triplesInDictKeys uint64
	strType           uint64
	cstringInStr      uint64

	// GC lists and dynamic types (§4.8).
	nonEmptyGCLists            []uint64
	gcHeaderSize               uint64
	cachedKeysInHeapTypeObject uint64
}

// New constructs an unresolved Resolver over the given collaborators.
func New(moduleDir ModuleDirectory, addrMap AddressMap, partition Partition, typeDir TypeDirectory) *Resolver {
	return &Resolver{
		moduleDir:                  moduleDir,
		addrMap:                    addrMap,
		partition:                  partition,
		typeDir:                    typeDir,
		baseInType:                 UnknownOffset,
		dictInType:                 UnknownOffset,
		getSetInType:               UnknownOffset,
		keysInDict:                 UnknownOffset,
		triplesInDictKeys:          UnknownOffset,
		cstringInStr:               UnknownOffset,
		cachedKeysInHeapTypeObject: UnknownOffset,
		allArenasAligned:           true,
	}
}

// Resolve runs discovery to completion exactly once: module identification,
// arena table search, fundamental type discovery, dict/str offset
// calibration, static type discovery, builtins harvest, and garbage
// collection list discovery. Panics with *PreconditionError if called twice
// or before the injected ModuleDirectory has itself been resolved.
func (r *Resolver) Resolve() {
	if r.resolved {
		panic(&PreconditionError{Reason: "Resolve called twice"})
	}
	if !r.moduleDir.IsResolved() {
		panic(&PreconditionError{Reason: "module directory is not resolved"})
	}

	r.w = uint64(r.addrMap.PointerSize())
	r.order = r.addrMap.ByteOrder()
	r.poolsLimitOffset = r.w
	r.numFreePoolsOffset = 2 * r.w
	r.maxPoolsOffset = 2*r.w + 4
	r.availablePoolsOff = 2*r.w + 8
	r.nextOffset = 3*r.w + 8
	r.prevOffset = 4*r.w + 8
	r.arenaStructSize = 5*r.w + 8

	libMod, exeMod := r.identifyModules()

	if libMod != nil {
		r.findArenaStructArrayAndTypes(libMod)
	}
	if r.arenaStructArray == 0 && exeMod != nil {
		r.findArenaStructArrayAndTypes(exeMod)
	}

	r.resolved = true
}

// IsResolved reports whether Resolve has completed.
func (r *Resolver) IsResolved() bool { return r.resolved }

func (r *Resolver) typeInPyObject() uint64 { return r.w }

// Read-only accessors for everything the resolver derived.

func (r *Resolver) VersionTag() Version    { return r.version }
func (r *Resolver) LibraryPath() string    { return r.libPath }
func (r *Resolver) ExecutablePath() string { return r.exePath }
func (r *Resolver) PointerSize() uint64    { return r.w }

func (r *Resolver) ArenaStructArray() uint64      { return r.arenaStructArray }
func (r *Resolver) ArenaStructArrayLimit() uint64 { return r.arenaStructArrayLimit }
func (r *Resolver) ArenaStructCount() uint64      { return r.arenaStructCount }
func (r *Resolver) ArenaStructSize() uint64       { return r.arenaStructSize }
func (r *Resolver) NumArenas() uint64             { return r.numArenas }
func (r *Resolver) PoolSize() uint64              { return r.poolSize }
func (r *Resolver) ArenaSize() uint64             { return r.arenaSize }
func (r *Resolver) MaxPoolsIfAligned() uint64     { return r.maxPoolsIfAligned }
func (r *Resolver) MaxPoolsIfNotAligned() uint64  { return r.maxPoolsIfNotAligned }
func (r *Resolver) AllArenasAreAligned() bool     { return r.allArenasAligned }
func (r *Resolver) ActiveIndices() []uint32 {
	out := make([]uint32, len(r.activeIndices))
	copy(out, r.activeIndices)
	return out
}

func (r *Resolver) TypeType() uint64     { return r.typeType }
func (r *Resolver) TypeSize() uint64     { return r.typeSize }
func (r *Resolver) BaseInType() uint64   { return r.baseInType }
func (r *Resolver) ObjectType() uint64   { return r.objectType }
func (r *Resolver) DictInType() uint64   { return r.dictInType }
func (r *Resolver) GetSetInType() uint64 { return r.getSetInType }
func (r *Resolver) DictType() uint64     { return r.dictType }

func (r *Resolver) KeysInDict() uint64        { return r.keysInDict }
func (r *Resolver) TriplesInDictKeys() uint64 { return r.triplesInDictKeys }
func (r *Resolver) StrType() uint64           { return r.strType }
func (r *Resolver) CstringInStr() uint64      { return r.cstringInStr }

func (r *Resolver) NonEmptyGarbageCollectionLists() []uint64 {
	out := make([]uint64, len(r.nonEmptyGCLists))
	copy(out, r.nonEmptyGCLists)
	return out
}
func (r *Resolver) GarbageCollectionHeaderSize() uint64 { return r.gcHeaderSize }
func (r *Resolver) CachedKeysInHeapTypeObject() uint64  { return r.cachedKeysInHeapTypeObject }

func (r *Resolver) HasType(addr uint64) bool       { return r.typeDir.HasType(addr) }
func (r *Resolver) GetTypeName(addr uint64) string { return r.typeDir.GetTypeName(addr) }

// IsATypeType reports whether addr is the meta-type or (transitively, via
// base-type links) derived from it, i.e. walking base() from addr
// eventually reaches TypeType(). Ordinary types such as tuple, whose chain
// ends at object, are not. Bounded to depth 100 against corrupt or cyclic chains; on
// exceeding the bound, logs a warning and returns false.
func (r *Resolver) IsATypeType(addr uint64) bool {
	depth := 0
	for addr != 0 {
		if addr == r.typeType {
			return true
		}
		depth++
		if depth == 100 {
			warnf("excessive depth found for probable type object 0x%x", addr)
			return false
		}
		addr = r.addrMap.ReadOffset(addr+r.baseInType, 0)
	}
	return false
}
