package pyresolve

// findFundamentalTypes walks the pool/block layout of every arena described
// by the now-known arena table, looking for a block whose object's type
// chain leads to a type whose own type pointer refers back to itself -- the
// meta-type fixed point every interpreter build has, since type(type) is
// type. The first block found this way anchors typeType; everything else
// (the base-class offset inside a type object, the layout of dict and
// object) falls out of scanning that type's own fields for further fixed
// points. This converges quickly in practice, normally within the first few
// blocks of the first pool of the first arena.
func (r *Resolver) findFundamentalTypes(base, limit uint64) {
	if r.version == VersionUnknown {
		warnf("the major version of python was not derived successfully from module paths; an attempt will be made to derive needed offsets")
	}
	for arenaStruct := r.arenaStructArray; arenaStruct < r.arenaStructArrayLimit; arenaStruct += r.arenaStructSize {
		arena := r.addrMap.ReadOffset(arenaStruct, 0)
		if arena == 0 {
			continue
		}
		firstPool := alignUp(arena, r.poolSize)
		poolsLimit := alignDown(arena+r.arenaSize, r.poolSize)

		for pool := firstPool; pool < poolsLimit; pool += r.poolSize {
			if r.addrMap.ReadU32(pool, 0) == 0 {
				continue
			}
			blockSize := r.poolSize - uint64(r.addrMap.ReadU32(pool+0x2c, 0))
			if blockSize == 0 {
				continue
			}
			poolLimit := pool + r.poolSize

			for block := pool + 0x30; block+blockSize <= poolLimit; block += blockSize {
				candidateType := r.addrMap.ReadOffset(block+r.typeInPyObject(), 0xbadbad)
				if candidateType&(r.w-1) != 0 {
					continue
				}
				candidateTypeType := r.addrMap.ReadOffset(candidateType+2*r.w, 0xbadbad)
				if candidateTypeType&(r.w-1) != 0 {
					continue
				}
				if r.addrMap.ReadOffset(candidateTypeType+r.typeInPyObject(), 0) != candidateTypeType {
					continue
				}
				if candidateTypeType < base || candidateTypeType >= limit {
					continue
				}
				typeSize := r.addrMap.ReadOffset(candidateTypeType+4*r.w, UnknownOffset)
				if typeSize < 0x10 || limit-candidateTypeType < typeSize {
					continue
				}

				dictRef, ok := r.findBaseObjectAndDict(candidateTypeType, typeSize, base, limit)
				if !ok {
					continue
				}
				r.typeType = candidateTypeType
				r.typeSize = typeSize
				r.typeDir.RegisterType(r.typeType, "type")
				r.typeDir.RegisterType(r.objectType, "object")
				r.typeDir.RegisterType(r.dictType, "dict")

				// The dict for the type type is non-empty and holds multiple
				// string keys, which pins down the dict and str layouts.
				if r.calculateOffsetsForDictAndStr(dictRef) {
					r.findStaticallyAllocatedTypes(base, limit)
					r.harvestBuiltins(base, limit)
				}
				return
			}
		}
	}
}

// findBaseObjectAndDict scans the field area of a candidate meta-type,
// looking for two adjacent pointer-sized slots that point to (a) an object
// type whose own type pointer is the candidate and whose same slot is 0
// there (object has no base), and (b) a dict instance whose type is likewise
// typed by the candidate and bases off of the object type. On success it
// fills in objectType, dictType, baseInType, dictInType and getSetInType,
// and returns the dict instance found (the meta-type's attribute dict).
func (r *Resolver) findBaseObjectAndDict(candidateTypeType, typeSize, base, limit uint64) (dictRef uint64, ok bool) {
	for baseInType := 0x18 * r.w; baseInType < typeSize-0x10; baseInType += r.w {
		candidateObjType := r.addrMap.ReadOffset(candidateTypeType+baseInType, 0xbad)
		if candidateObjType&(r.w-1) != 0 {
			continue
		}
		candidateDict := r.addrMap.ReadOffset(candidateTypeType+baseInType+r.w, 0xbad)
		if candidateDict&(r.w-1) != 0 {
			continue
		}
		if r.addrMap.ReadOffset(candidateObjType+r.typeInPyObject(), 0) != candidateTypeType {
			continue
		}
		if r.addrMap.ReadOffset(candidateObjType+baseInType, 0xbad) != 0 {
			continue
		}
		candidateDictType := r.addrMap.ReadOffset(candidateDict+r.typeInPyObject(), 0)
		if r.addrMap.ReadOffset(candidateDictType+r.typeInPyObject(), 0xbad) != candidateTypeType {
			continue
		}
		if r.addrMap.ReadOffset(candidateDictType+baseInType, 0xbad) != candidateObjType {
			continue
		}

		r.baseInType = baseInType
		r.objectType = candidateObjType
		r.dictInType = baseInType + r.w
		r.getSetInType = baseInType - r.w
		r.dictType = candidateDictType
		return candidateDict, true
	}
	return 0, false
}

// findStaticallyAllocatedTypes walks the module's writable image, W bytes
// at a time, looking for objects whose type field is typeType and whose
// base-type field is either non-zero and already known to chain back to a
// type, or zero with a plausible getset table (some legacy builtin types
// inherit from nothing at all). A hit resolved via base-class advances the
// cursor past most of the type's body; everything else advances one word.
func (r *Resolver) findStaticallyAllocatedTypes(base, limit uint64) {
	if limit < r.typeSize-1 {
		return
	}
	candidateLimit := limit - r.typeSize + 1

	candidate := base
	for candidate < candidateLimit {
		if !r.typeDir.HasType(candidate) && r.addrMap.ReadOffset(candidate+r.typeInPyObject(), 0xbad) == r.typeType {
			baseType := r.addrMap.ReadOffset(candidate+r.baseInType, 0)
			if baseType != 0 {
				if baseType == r.objectType || r.typeDir.HasType(baseType) ||
					r.addrMap.ReadOffset(baseType+r.typeInPyObject(), 0) == r.typeType {
					r.typeDir.RegisterType(candidate, "")
					candidate += r.baseInType
					continue
				}
			} else if candidate != r.objectType {
				getSet := r.addrMap.ReadOffset(candidate+r.getSetInType, 0)
				if getSet >= base && getSet < limit {
					r.typeDir.RegisterType(candidate, "")
				}
			}
		}
		candidate += r.w
	}
}
