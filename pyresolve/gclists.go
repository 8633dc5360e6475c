package pyresolve

// Garbage-collected objects carry a tracking header in front of the object
// proper: two list links plus bookkeeping. The header shrank by one word
// between the two major versions.
func (r *Resolver) python2GCHeaderSize() uint64 { return 4 * r.w }
func (r *Resolver) python3GCHeaderSize() uint64 { return 3 * r.w }

// findNonEmptyGarbageCollectionLists scans the module's writable image for
// garbage-collector list sentinels: a two-word (next, prev) node whose
// forward neighbor points back to it and whose backward neighbor points
// forward to it. An empty generation is its own circular list and is
// skipped; a populated one must additionally carry a type-tagged object
// right after the tracking header of its first entry, which is also how the
// header size is settled when the version alone didn't already settle it.
func (r *Resolver) findNonEmptyGarbageCollectionLists(base, limit uint64) {
	switch r.version {
	case VersionV2:
		r.gcHeaderSize = r.python2GCHeaderSize()
	case VersionV3:
		r.gcHeaderSize = r.python3GCHeaderSize()
	}

	if limit < base+2*r.w {
		return
	}
	listCandidateLimit := limit - 2*r.w
	for listCandidate := base; listCandidate < listCandidateLimit; listCandidate += r.w {
		firstEntry := r.addrMap.ReadOffset(listCandidate, 0)
		if firstEntry == 0 || firstEntry == listCandidate {
			continue
		}
		if r.addrMap.ReadOffset(firstEntry+r.w, 0) != listCandidate {
			continue
		}
		lastEntry := r.addrMap.ReadOffset(listCandidate+r.w, 0)
		if lastEntry == 0 || lastEntry == listCandidate {
			continue
		}
		if r.addrMap.ReadOffset(lastEntry, 0) != listCandidate {
			continue
		}
		foundList := false
		if r.gcHeaderSize == 0 {
			if r.looksLikeGCEntry(firstEntry, r.python2GCHeaderSize()) {
				foundList = true
				r.gcHeaderSize = r.python2GCHeaderSize()
			} else if r.looksLikeGCEntry(firstEntry, r.python3GCHeaderSize()) {
				foundList = true
				r.gcHeaderSize = r.python3GCHeaderSize()
			}
		} else {
			foundList = r.looksLikeGCEntry(firstEntry, r.gcHeaderSize)
		}
		if foundList {
			r.nonEmptyGCLists = append(r.nonEmptyGCLists, listCandidate)
			listCandidate += 2 * r.w
		}
	}
}

// looksLikeGCEntry reports whether the object following a tracking header of
// the given size at entry is type-tagged: its type field must point at an
// object whose own type is the meta-type.
func (r *Resolver) looksLikeGCEntry(entry, headerSize uint64) bool {
	objectType := r.addrMap.ReadOffset(entry+headerSize+r.typeInPyObject(), 0)
	return objectType != 0 &&
		r.addrMap.ReadOffset(objectType+r.typeInPyObject(), 0) == r.typeType
}

// findDynamicallyAllocatedTypes walks every non-empty garbage-collection
// list forward, validating each node's back-link along the way. Any node
// whose tracked object is typed by something that chains back to the
// meta-type is itself a dynamically allocated (heap) type; those are
// registered without names, since a heap type's name lives in an interior
// object rather than at a fixed offset. The walk doubles as the one chance
// to pin down where a heap type caches its instance dict-keys object.
func (r *Resolver) findDynamicallyAllocatedTypes() {
	needCachedKeysOffset := r.version != VersionV2
	for _, listHead := range r.nonEmptyGCLists {
		prevNode := listHead
		for node := r.addrMap.ReadOffset(listHead, listHead); node != listHead; node = r.addrMap.ReadOffset(node, listHead) {
			if r.addrMap.ReadOffset(node+r.w, 0) != prevNode {
				warnf("GC list at 0x%x is ill-formed near 0x%x", listHead, node)
				break
			}
			prevNode = node
			typeCandidate := node + r.gcHeaderSize
			if r.typeDir.HasType(typeCandidate) {
				continue
			}
			if !r.IsATypeType(r.addrMap.ReadOffset(typeCandidate+r.typeInPyObject(), 0)) {
				continue
			}
			r.typeDir.RegisterType(typeCandidate, "")
			if needCachedKeysOffset && r.findCachedKeysOffset(typeCandidate) {
				needCachedKeysOffset = false
			}
		}
	}
}

// findCachedKeysOffset probes the tail words of a freshly found heap type
// for a pointer with the shape of a shared dict-keys object: a ref count of
// exactly one, a power-of-two size, a usable fraction of size-1 and a live
// count no larger than that. The ref count is not one for dict-keys objects
// in general, but it is for most of the ones referenced from type objects,
// and one match is all that's needed to fix the offset.
func (r *Resolver) findCachedKeysOffset(typeCandidate uint64) bool {
	for keysOffset := r.typeSize - 0x10*r.w; keysOffset < r.typeSize; keysOffset += r.w {
		keysCandidate := r.addrMap.ReadOffset(typeCandidate+keysOffset, 0xbad)
		if keysCandidate&(r.w-1) != 0 {
			continue
		}
		if r.addrMap.ReadOffset(keysCandidate, 0) != 1 {
			continue
		}
		size := r.addrMap.ReadOffset(keysCandidate+r.w, 0)
		if size == 0 || size&(size-1) != 0 {
			continue
		}
		if r.addrMap.ReadOffset(keysCandidate+3*r.w, 0xbad) != size-1 {
			continue
		}
		if r.addrMap.ReadOffset(keysCandidate+4*r.w, UnknownOffset) > size-1 {
			continue
		}
		r.cachedKeysInHeapTypeObject = keysOffset
		return true
	}
	return false
}
