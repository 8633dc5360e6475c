package pyresolve

// Layout constants for PyDictObject/PyDictKeysObject and PyStringObject/
// PyUnicodeObject differ between the legacy and current dict
// implementations. All are W-relative, since every field is either a
// pointer or a machine-word-sized count, except the legacy string's
// character-data offset, which is the fixed 0x24.
func (r *Resolver) python2MaskInDict() uint64         { return 4 * r.w }
func (r *Resolver) python2KeysInDictOffset() uint64   { return 5 * r.w }
func (r *Resolver) python2TriplesInDictKeys() uint64  { return 0 }
func (r *Resolver) python2CstringInStr() uint64       { return 0x24 }
func (r *Resolver) python3KeysInDictOffset() uint64   { return 3 * r.w }
func (r *Resolver) python3CapacityInDictKeys() uint64 { return r.w }
func (r *Resolver) python3TriplesInDictKeys() uint64  { return 4 * r.w }
func (r *Resolver) python3CstringInStr() uint64       { return 6 * r.w }
func (r *Resolver) lengthInStr() uint64               { return 2 * r.w }

// calculateOffsetsForDictAndStr picks the dict/str layout for the known or
// suspected interpreter version and confirms it by locating the type
// object's own __base__ key in its dict. If the version is unknown it
// tries the legacy layout first, then the current one.
func (r *Resolver) calculateOffsetsForDictAndStr(dictForTypeType uint64) bool {
	tryVersion := func(v Version) bool {
		switch v {
		case VersionV2:
			r.keysInDict = r.python2KeysInDictOffset()
			r.triplesInDictKeys = r.python2TriplesInDictKeys()
			r.cstringInStr = r.python2CstringInStr()
		case VersionV3:
			r.keysInDict = r.python3KeysInDictOffset()
			r.triplesInDictKeys = r.python3TriplesInDictKeys()
			r.cstringInStr = r.python3CstringInStr()
		}
		return r.checkDictAndStrOffsets(dictForTypeType)
	}

	switch r.version {
	case VersionV2:
		if !tryVersion(VersionV2) {
			warnf("failed to confirm dict and str offsets for the legacy interpreter layout.")
			return false
		}
		return true
	case VersionV3:
		if !tryVersion(VersionV3) {
			warnf("failed to confirm dict and str offsets for the current interpreter layout.")
			return false
		}
		return true
	default:
		if tryVersion(VersionV2) {
			return true
		}
		if tryVersion(VersionV3) {
			return true
		}
		warnf("failed to determine offsets for the interpreter's dict and str layout.")
		return false
	}
}

// checkDictAndStrOffsets walks the (hash, key, value) triples of the dict
// at dictForTypeType looking for a string key whose bytes spell "__base__",
// confirming both the dict-keys layout and the string layout at once. On
// success it fixes strType and registers it.
func (r *Resolver) checkDictAndStrOffsets(dictForTypeType uint64) bool {
	dictKeys := r.addrMap.ReadOffset(dictForTypeType+r.keysInDict, 0xbad)
	if dictKeys&(r.w-1) != 0 {
		return false
	}

	// This is not sufficiently general for dicts at large, but it works for
	// the dict associated with the meta-type.
	var capacity uint64
	if r.triplesInDictKeys > 0 {
		capacity = r.addrMap.ReadOffset(dictKeys+r.python3CapacityInDictKeys(), UnknownOffset)
		if capacity == UnknownOffset {
			return false
		}
	} else {
		mask := r.addrMap.ReadOffset(dictForTypeType+r.python2MaskInDict(), UnknownOffset)
		if mask == UnknownOffset {
			return false
		}
		capacity = mask + 1
	}

	triples := dictKeys + r.triplesInDictKeys
	triplesLimit := triples + capacity*3*r.w
	for triple := triples; triple < triplesLimit; triple += 3 * r.w {
		if r.addrMap.ReadOffset(triple, 0) == 0 {
			continue
		}
		if r.addrMap.ReadOffset(triple+2*r.w, 0) == 0 {
			continue
		}
		strCandidate := r.addrMap.ReadOffset(triple+r.w, 0)
		if strCandidate == 0 {
			continue
		}
		image, ok := r.addrMap.FindMappedMemoryImage(strCandidate)
		if !ok || uint64(len(image)) < r.cstringInStr+9 {
			continue
		}
		if readWord(r.order, image, r.lengthInStr(), r.w) != 8 {
			continue
		}
		if !matchesCString(image, r.cstringInStr, "__base__") {
			continue
		}
		r.strType = readWord(r.order, image, r.typeInPyObject(), r.w)
		r.typeDir.RegisterType(r.strType, "str")
		return true
	}
	return false
}

// harvestBuiltins locates the builtins module's dict and registers every
// type object reachable from it under its Python-level name, giving names
// to types that findStaticallyAllocatedTypes could only find anonymously.
func (r *Resolver) harvestBuiltins(base, limit uint64) {
	var builtinDict uint64
	if r.triplesInDictKeys > 0 {
		builtinDict = r.findPython3Builtins(base, limit)
	} else {
		builtinDict = r.findPython2Builtins(base, limit)
	}
	if builtinDict != 0 {
		r.registerBuiltinTypesFromDict(builtinDict)
	}
}

// findPython3Builtins scans for a dict whose values include type, object,
// and dict -- the set every builtins module dict has --
// identifying it without relying on a string match.
func (r *Resolver) findPython3Builtins(base, limit uint64) uint64 {
	for ref := base; ref < limit; ref += r.w {
		dictCandidate := r.addrMap.ReadOffset(ref, 0xbad)
		if dictCandidate&(r.w-1) != 0 {
			continue
		}
		if r.addrMap.ReadOffset(dictCandidate+r.typeInPyObject(), 0xbad) != r.dictType {
			continue
		}
		keys := r.addrMap.ReadOffset(dictCandidate+r.keysInDict, 0xbad)
		if keys&(r.w-1) != 0 {
			continue
		}
		capacity := r.addrMap.ReadOffset(keys+r.python3CapacityInDictKeys(), UnknownOffset)
		if capacity >= 0x200 {
			// We don't expect that many built-ins.
			continue
		}

		firstValue := keys + r.triplesInDictKeys + 2*r.w
		valuesLimit := firstValue + capacity*3*r.w
		var foundTypeType, foundObjectType, foundDictType bool
		for o := firstValue; o < valuesLimit; o += 3 * r.w {
			switch r.addrMap.ReadOffset(o, 0xbad) {
			case r.typeType:
				foundTypeType = true
			case r.objectType:
				foundObjectType = true
			case r.dictType:
				foundDictType = true
			}
		}
		if foundTypeType && foundObjectType && foundDictType {
			return dictCandidate
		}
	}
	return 0
}

// findPython2Builtins scans for a dict holding a key string literally
// spelling "__builtin__", the legacy module's own name, whose value is
// itself a dict -- the builtins module's __dict__.
func (r *Resolver) findPython2Builtins(base, limit uint64) uint64 {
	for ref := base; ref < limit; ref += r.w {
		outerDict := r.addrMap.ReadOffset(ref, 0xbad)
		if outerDict&(r.w-1) != 0 {
			continue
		}
		if r.addrMap.ReadOffset(outerDict+r.typeInPyObject(), 0xbad) != r.dictType {
			continue
		}
		keys := r.addrMap.ReadOffset(outerDict+r.keysInDict, 0xbad)
		if keys&(r.w-1) != 0 {
			continue
		}
		mask := r.addrMap.ReadOffset(outerDict+r.python2MaskInDict(), UnknownOffset)
		if mask == UnknownOffset {
			continue
		}
		capacity := mask + 1
		firstKey := keys + r.triplesInDictKeys + r.w
		keysLimit := firstKey + capacity*3*r.w
		var builtinDict uint64
		for o := firstKey; o < keysLimit; o += 3 * r.w {
			dictCandidate := r.addrMap.ReadOffset(o+r.w, 0xbad)
			if dictCandidate == 0 {
				continue
			}
			if r.addrMap.ReadOffset(dictCandidate+r.typeInPyObject(), 0xbad) != r.dictType {
				continue
			}
			strCandidate := r.addrMap.ReadOffset(o, 0xbad)
			if strCandidate == 0 || strCandidate&(r.w-1) != 0 {
				continue
			}
			image, ok := r.addrMap.FindMappedMemoryImage(strCandidate)
			if !ok || uint64(len(image)) < r.cstringInStr+12 {
				continue
			}
			if matchesCString(image, r.cstringInStr, "__builtin__") {
				builtinDict = dictCandidate
			}
		}
		if builtinDict != 0 {
			return builtinDict
		}
	}
	return 0
}

// registerBuiltinTypesFromDict walks every (hash, key, value) triple of
// builtinDict, registering value under key's decoded string whenever key
// is a str and value is a type object.
func (r *Resolver) registerBuiltinTypesFromDict(builtinDict uint64) {
	keys := r.addrMap.ReadOffset(builtinDict+r.keysInDict, 0xbad)
	if keys&(r.w-1) != 0 {
		return
	}
	var capacity uint64
	if r.triplesInDictKeys == 0 {
		mask := r.addrMap.ReadOffset(builtinDict+r.python2MaskInDict(), UnknownOffset)
		if mask == UnknownOffset {
			return
		}
		capacity = mask + 1
	} else {
		capacity = r.addrMap.ReadOffset(keys+r.python3CapacityInDictKeys(), UnknownOffset)
		if capacity == UnknownOffset {
			return
		}
	}

	triples := keys + r.triplesInDictKeys
	triplesLimit := triples + capacity*3*r.w
	for triple := triples; triple < triplesLimit; triple += 3 * r.w {
		key := r.addrMap.ReadOffset(triple+r.w, 0)
		if key == 0 {
			continue
		}
		value := r.addrMap.ReadOffset(triple+2*r.w, 0)
		if value == 0 {
			continue
		}
		if r.addrMap.ReadOffset(value+r.typeInPyObject(), 0) != r.typeType {
			continue
		}
		image, ok := r.addrMap.FindMappedMemoryImage(key)
		if !ok || uint64(len(image)) < r.cstringInStr+1 {
			continue
		}
		if readWord(r.order, image, r.typeInPyObject(), r.w) != r.strType {
			continue
		}
		length := readWord(r.order, image, r.lengthInStr(), r.w)
		if uint64(len(image)) < r.cstringInStr+length+1 {
			continue
		}
		if image[r.cstringInStr+length] != 0 {
			continue
		}
		name := cStringFrom(image, r.cstringInStr, length)
		r.typeDir.RegisterType(value, name)
	}
}
