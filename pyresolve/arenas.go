package pyresolve

import (
	"sort"

	"github.com/zhigao/pymortem/corefile"
)

// findArenaStructArrayAndTypes searches a module's writable ranges for the
// pymalloc arena descriptor array, word by word: at each candidate address
// it hypothesizes that the word found there is a pointer to an
// arena_object, validates the hypothesis against obmalloc's invariants
// (pool/arena geometry, the free-pool singly-linked list, the struct's own
// doubly-linked free list), and keeps the longest run of validated
// descriptors found anywhere in the module. Once a table is found, this
// also enumerates active arenas, claims their memory, and proceeds to
// fundamental type discovery, the garbage collector's linked lists, and
// dynamically allocated type discovery.
func (r *Resolver) findArenaStructArrayAndTypes(mod *corefile.Module) {
	var bestBase, bestLimit uint64

	for _, rng := range mod.Ranges {
		if !rng.IsWritable() {
			continue
		}
		base := rng.Base
		limit := rng.Limit
		if limit > 0 {
			limit = r.addrMap.Limit(limit - 1)
		}

		for moduleAddr := base; moduleAddr < limit; moduleAddr += r.w {
			arenaStruct0 := r.addrMap.ReadOffset(moduleAddr, 0xbad)
			if arenaStruct0&(r.w-1) != 0 || arenaStruct0 == 0 {
				continue
			}

			arena0 := r.addrMap.ReadOffset(arenaStruct0, 0xbad)
			if arena0 == 0 || arena0&(r.w-1) != 0 {
				continue
			}

			poolsLimit0 := r.addrMap.ReadOffset(arenaStruct0+r.poolsLimitOffset, 0xbad)
			if poolsLimit0&0xfff != 0 || poolsLimit0 < arena0 {
				continue
			}

			numFreePools0 := uint64(r.addrMap.ReadU32(arenaStruct0+r.numFreePoolsOffset, 0xbad))
			maxPools0 := uint64(r.addrMap.ReadU32(arenaStruct0+r.maxPoolsOffset, 0xbad))
			if maxPools0 == 0 || numFreePools0 > maxPools0 {
				continue
			}
			numNeverUsedPools0 := numFreePools0

			firstAvailablePool := r.addrMap.ReadOffset(arenaStruct0+r.availablePoolsOff, 0xbad)
			if firstAvailablePool != 0 {
				availablePool := firstAvailablePool
				for availablePool != 0 {
					if availablePool&0xfff != 0 {
						break
					}
					if numNeverUsedPools0 == 0 {
						break
					}
					numNeverUsedPools0--
					availablePool = r.addrMap.ReadOffset(availablePool+2*r.w, 0xbad)
				}
				if availablePool != 0 {
					continue
				}
			}

			denom := maxPools0 - numNeverUsedPools0
			if denom == 0 {
				continue
			}
			poolSize := alignDown((poolsLimit0-arena0)/denom, uint64(0x1000))
			if poolSize == 0 {
				continue
			}
			if !isAligned(poolsLimit0, poolSize) {
				continue
			}

			arenaSize := maxPools0 * poolSize
			if !isAligned(arena0, poolSize) {
				arenaSize += poolSize
			}
			maxPoolsIfAligned := arenaSize / poolSize
			maxPoolsIfNotAligned := maxPoolsIfAligned - 1

			freeListTrailerFound := false
			arenaStruct := arenaStruct0 + r.arenaStructSize
			for ; ; arenaStruct += r.arenaStructSize {
				arena := r.addrMap.ReadOffset(arenaStruct, 0xbad)
				nextArenaStruct := r.addrMap.ReadOffset(arenaStruct+r.nextOffset, 0xbad)
				if arena == 0 {
					if nextArenaStruct != 0 {
						if nextArenaStruct < arenaStruct0 {
							break
						}
						if (nextArenaStruct-arenaStruct0)%r.arenaStructSize != 0 {
							break
						}
					} else {
						if freeListTrailerFound {
							break
						}
						freeListTrailerFound = true
					}
					continue
				}
				numFreePools := uint64(r.addrMap.ReadU32(arenaStruct+r.numFreePoolsOffset, 0xbad))
				maxPools := uint64(r.addrMap.ReadU32(arenaStruct+r.maxPoolsOffset, 0xbad))
				wantMaxPools := maxPoolsIfNotAligned
				if isAligned(arena, poolSize) {
					wantMaxPools = maxPoolsIfAligned
				}
				if maxPools != wantMaxPools || numFreePools > maxPools {
					break
				}
				poolsLimit := r.addrMap.ReadOffset(arenaStruct+r.poolsLimitOffset, 0xbad)
				if poolsLimit < arena || poolsLimit > arena+arenaSize || !isAligned(poolsLimit, poolSize) {
					break
				}
			}

			arenaStructArrayLimit := arenaStruct
			for back := arenaStruct - r.arenaStructSize; back > arenaStruct0; back -= r.arenaStructSize {
				if r.addrMap.ReadOffset(back, 0xbad) == 0 && r.addrMap.ReadOffset(back+r.nextOffset, 0xbad) > arenaStructArrayLimit {
					arenaStructArrayLimit = back
				}
			}

			numValidArenaStructs := (arenaStructArrayLimit - arenaStruct0) / r.arenaStructSize
			if r.arenaStructCount < numValidArenaStructs {
				r.arenaStructCount = numValidArenaStructs
				r.arenaStructArray = arenaStruct0
				r.arenaStructArrayLimit = arenaStructArrayLimit
				r.poolSize = poolSize
				r.arenaSize = arenaSize
				r.maxPoolsIfAligned = maxPoolsIfAligned
				r.maxPoolsIfNotAligned = maxPoolsIfNotAligned
				bestBase = base
				bestLimit = limit
			}
		}
	}

	for arenaStruct := r.arenaStructArray; arenaStruct < r.arenaStructArrayLimit; arenaStruct += r.arenaStructSize {
		arena := r.addrMap.ReadOffset(arenaStruct, 0)
		if arena == 0 {
			continue
		}
		r.numArenas++
		if !isAligned(arena, r.poolSize) {
			r.allArenasAligned = false
		}
	}

	r.activeIndices = make([]uint32, 0, r.numArenas)
	for arenaStruct := r.arenaStructArray; arenaStruct < r.arenaStructArrayLimit; arenaStruct += r.arenaStructSize {
		arena := r.addrMap.ReadOffset(arenaStruct, 0)
		if arena == 0 {
			continue
		}
		idx := uint32((arenaStruct - r.arenaStructArray) / r.arenaStructSize)
		r.activeIndices = append(r.activeIndices, idx)
		if r.allArenasAligned {
			if !r.partition.ClaimRange(arena, r.arenaSize, pythonArenaLabel, false) {
				warnf("Python arena at 0x%x was already marked as something else.", arena)
			}
		}
	}
	sort.Slice(r.activeIndices, func(i, k int) bool {
		ai := r.arenaStructArray + uint64(r.activeIndices[i])*r.arenaStructSize
		ak := r.arenaStructArray + uint64(r.activeIndices[k])*r.arenaStructSize
		return r.addrMap.ReadOffset(ai, 0xbad) < r.addrMap.ReadOffset(ak, 0xbad)
	})

	if r.arenaStructCount != 0 {
		r.findFundamentalTypes(bestBase, bestLimit)
		if r.typeType != 0 {
			r.findNonEmptyGarbageCollectionLists(bestBase, bestLimit)
			r.findDynamicallyAllocatedTypes()
		}
	}
}

// ArenaStructFor finds the descriptor of the active arena containing addr
// via binary search over activeIndices (sorted by arena base address), or
// returns 0 if no active arena contains addr.
func (r *Resolver) ArenaStructFor(addr uint64) uint64 {
	lo, hi := 0, len(r.activeIndices)
	for lo < hi {
		mid := (lo + hi) / 2
		arenaStruct := r.arenaStructArray + uint64(r.activeIndices[mid])*r.arenaStructSize
		arena := r.addrMap.ReadOffset(arenaStruct, 0xbad)
		switch {
		case arena+r.arenaSize <= addr:
			lo = mid + 1
		case arena <= addr:
			return arenaStruct
		default:
			hi = mid
		}
	}
	return 0
}
