package corefile

import "sort"

// claim is one labelled, non-overlapping range owned by a Partition.
type claim struct {
	base, limit    uint64
	label          string
	isAnchorSource bool
}

// Partition is a claim/reservation registry over the address space: it
// tracks which labelled owner (e.g. "python arena", a module's own data
// segment) has claimed each range, so that independent discovery passes
// don't silently overlap.
//
// Claims are kept sorted by base address, and a new claim that overlaps an
// existing one is rejected rather than merged.
type Partition struct {
	claims []claim
}

// NewPartition returns an empty Partition.
func NewPartition() *Partition { return &Partition{} }

// ClaimRange attempts to claim [base, base+size) under label. Returns false
// (without mutating the partition) if any part of the range is already
// claimed. isAnchorSource marks whether this range should be considered a
// source of GC roots / anchors by later analysis stages; the partition
// itself does not interpret it, it's simply recorded for callers such as
// a future report generator.
func (p *Partition) ClaimRange(base, size uint64, label string, isAnchorSource bool) bool {
	if size == 0 {
		return true
	}
	limit := base + size
	k := sort.Search(len(p.claims), func(k int) bool { return p.claims[k].limit > base })
	if k < len(p.claims) && p.claims[k].base < limit {
		return false
	}
	p.claims = append(p.claims, claim{})
	copy(p.claims[k+1:], p.claims[k:])
	p.claims[k] = claim{base: base, limit: limit, label: label, isAnchorSource: isAnchorSource}
	return true
}

// Find returns the label and anchor-source flag claiming addr, if any.
func (p *Partition) Find(addr uint64) (label string, isAnchorSource bool, ok bool) {
	k := sort.Search(len(p.claims), func(k int) bool { return addr < p.claims[k].base })
	k--
	if k >= 0 && p.claims[k].base <= addr && addr < p.claims[k].limit {
		c := p.claims[k]
		return c.label, c.isAnchorSource, true
	}
	return "", false, false
}
