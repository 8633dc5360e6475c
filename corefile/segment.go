package corefile

import (
	"fmt"
	"sort"
)

// dataSegment describes one contiguous range of a core dump's virtual
// memory, backed by bytes mmap'd (or otherwise loaded) from a file.
type dataSegment struct {
	addr uint64
	data []byte

	// writable is true if the range was writable in the traced process.
	writable bool
	// readable is true if the range was readable in the traced process.
	readable bool
}

func (s dataSegment) String() string {
	mode := ""
	if s.readable {
		mode += "R"
	}
	if s.writable {
		mode += "W"
	}
	return fmt.Sprintf("dataSegment{addr:0x%x, size:0x%x, mode:%s}", s.addr, s.size(), mode)
}

func (s dataSegment) size() uint64 { return uint64(len(s.data)) }

func (s dataSegment) contains(addr uint64) bool {
	return s.addr <= addr && addr < s.addr+s.size()
}

// slice returns the sub-segment [addr, addr+size) of s. Fails if that range
// is not fully contained in s.
func (s dataSegment) slice(addr, size uint64) (dataSegment, bool) {
	if addr < s.addr {
		return dataSegment{}, false
	}
	offset := addr - s.addr
	if offset > s.size() || offset+size > s.size() {
		return dataSegment{}, false
	}
	return dataSegment{
		addr:     addr,
		data:     s.data[offset : offset+size : offset+size],
		writable: s.writable,
		readable: s.readable,
	}, true
}

// dataSegments is a sorted, non-overlapping list of segments.
type dataSegments []dataSegment

func (ss dataSegments) Len() int           { return len(ss) }
func (ss dataSegments) Swap(i, k int)      { ss[i], ss[k] = ss[k], ss[i] }
func (ss dataSegments) Less(i, k int) bool { return ss[i].addr < ss[k].addr }

// find returns the segment containing addr, if any.
func (ss dataSegments) find(addr uint64) (dataSegment, bool) {
	k := sort.Search(len(ss), func(k int) bool { return addr < ss[k].addr })
	k--
	if k >= 0 && ss[k].contains(addr) {
		return ss[k], true
	}
	return dataSegment{}, false
}

// insert adds [addr, addr+size) to ss, rejecting any overlap with a segment
// already present: two segments claiming the same byte of address space
// means the caller built the map from inconsistent sources.
func (ss *dataSegments) insert(s dataSegment) error {
	if s.size() == 0 {
		return nil
	}
	addr, size := s.addr, s.size()
	k := sort.Search(len(*ss), func(k int) bool {
		e := (*ss)[k]
		return e.addr+e.size() > addr
	})
	if k < len(*ss) && (*ss)[k].addr < addr+size {
		return fmt.Errorf("corefile: overlapping segment at 0x%x (existing %s)", addr, (*ss)[k])
	}
	*ss = append(*ss, dataSegment{})
	copy((*ss)[k+1:], (*ss)[k:])
	(*ss)[k] = s
	return nil
}
