package corefile

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// LoadELFCore reads a Linux/ELF core file and returns an AddressMap covering
// every PT_LOAD segment, plus a ModuleDirectory built from the core's
// PT_NOTE NT_FILE entries (the list of files that were mapped into the
// traced process, as recorded by the kernel/gdb at dump time).
//
// The PT_NOTE walk additionally decodes NT_FILE notes, which most core
// readers skip over along with the other note types they don't need.
func LoadELFCore(coreFilename string) (*AddressMap, *ModuleDirectory, error) {
	mmapf, err := mmapOpen(coreFilename)
	if err != nil {
		return nil, nil, err
	}
	f, err := elf.NewFile(mmapf)
	if err != nil {
		return nil, nil, err
	}

	pointerSize, order, err := elfArch(f)
	if err != nil {
		return nil, nil, err
	}
	addrMap := NewAddressMap(pointerSize, order)

	segs, err := loadProgSegments(mmapf, f)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range segs {
		if err := addrMap.AddSegment(s.addr, s.data, s.writable, s.readable); err != nil {
			return nil, nil, err
		}
	}

	moduleDir := NewModuleDirectory()
	files, err := readNTFileNote(f, order, pointerSize)
	if err != nil {
		return nil, nil, err
	}
	for _, nf := range files {
		addRangeFromSegments(moduleDir, addrMap, nf.path, nf.start, nf.end)
	}
	moduleDir.MarkResolved()

	return addrMap, moduleDir, nil
}

// LoadELFExec reads an executable's PT_LOAD segments into addrMap and
// records its ranges in moduleDir under execPath, for the (common) case
// where the core file's NT_FILE note didn't include the executable's own
// writable data, or where no core file NT_FILE note was present at all.
func LoadELFExec(execFilename string, addrMap *AddressMap, moduleDir *ModuleDirectory, execPath string) error {
	mmapf, err := mmapOpen(execFilename)
	if err != nil {
		return err
	}
	f, err := elf.NewFile(mmapf)
	if err != nil {
		return err
	}
	segs, err := loadProgSegments(mmapf, f)
	if err != nil {
		return err
	}
	for _, s := range segs {
		// The exec file's own static image may duplicate addresses already
		// covered by the core (e.g. read-only .text); ignore conflicts.
		_ = addrMap.AddSegment(s.addr, s.data, s.writable, s.readable)
		flags := RangeFlags(0)
		if s.readable {
			flags |= IsReadable
		}
		if s.writable {
			flags |= IsWritable
		}
		moduleDir.AddRange(execPath, s.addr, s.addr+s.size(), flags)
	}
	return nil
}

func elfArch(f *elf.File) (pointerSize int, order binary.ByteOrder, err error) {
	switch f.Class {
	case elf.ELFCLASS32:
		pointerSize = 4
	case elf.ELFCLASS64:
		pointerSize = 8
	default:
		return 0, nil, fmt.Errorf("corefile: unsupported ELF class %v", f.Class)
	}
	switch f.Data {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return 0, nil, fmt.Errorf("corefile: unsupported ELF data encoding %v", f.Data)
	}
	return pointerSize, order, nil
}

func loadProgSegments(mmapf *mmapFile, f *elf.File) ([]dataSegment, error) {
	var progs elfSortedProgHeaders
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD || ph.Memsz == 0 || ph.Filesz == 0 {
			continue
		}
		progs = append(progs, ph.ProgHeader)
	}
	sort.Sort(progs)

	// Merge adjacent segments with identical permissions.
	for k := 1; k < len(progs); {
		prev, curr := &progs[k-1], &progs[k]
		sameMode := prev.Flags&(elf.PF_R|elf.PF_W) == curr.Flags&(elf.PF_R|elf.PF_W)
		if sameMode && prev.Memsz == prev.Filesz && prev.Vaddr+prev.Memsz == curr.Vaddr && prev.Off+prev.Filesz == curr.Off {
			prev.Memsz += curr.Memsz
			prev.Filesz += curr.Filesz
			progs = append(progs[:k], progs[k+1:]...)
			continue
		}
		k++
	}

	out := make([]dataSegment, 0, len(progs))
	for _, ph := range progs {
		data, err := mmapf.ReadSliceAt(ph.Off, ph.Filesz)
		if err != nil {
			return nil, fmt.Errorf("corefile: bad ELF segment %+v: %w", ph, err)
		}
		out = append(out, dataSegment{
			addr:     ph.Vaddr,
			data:     data,
			writable: ph.Flags&elf.PF_W != 0,
			readable: ph.Flags&elf.PF_R != 0,
		})
	}
	return out, nil
}

type elfSortedProgHeaders []elf.ProgHeader

func (p elfSortedProgHeaders) Len() int           { return len(p) }
func (p elfSortedProgHeaders) Swap(i, k int)      { p[i], p[k] = p[k], p[i] }
func (p elfSortedProgHeaders) Less(i, k int) bool { return p[i].Vaddr < p[k].Vaddr }

// ntFile is one entry of a core file's NT_FILE PT_NOTE: a mapped file and
// the virtual-address range it occupies.
type ntFile struct {
	start, end uint64
	path       string
}

const elfNTFile = 0x46494c45 // NT_FILE, per /usr/include/linux/elfcore.h

// readNTFileNote extracts the kernel's list of mapped files from a core
// file's PT_NOTE segments. Layout (see linux's fs/binfmt_elf.c
// fill_files_note): a header of two words (count, page_size), then count
// records of three words (start, end, file_ofs), then count
// NUL-terminated path strings packed back to back.
func readNTFileNote(f *elf.File, order binary.ByteOrder, pointerSize int) ([]ntFile, error) {
	var out []ntFile
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_NOTE {
			continue
		}
		r := ph.Open()
		for {
			namesz, descsz, ntype, ok, err := readNoteHeader(r, order)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if err := skipPadded(r, namesz); err != nil {
				return nil, err
			}
			if ntype != elfNTFile {
				if err := skipPadded(r, descsz); err != nil {
					return nil, err
				}
				continue
			}
			desc := make([]byte, descsz)
			if _, err := io.ReadFull(r, desc); err != nil {
				return nil, fmt.Errorf("corefile: reading NT_FILE desc: %w", err)
			}
			if pad := descsz % 4; pad != 0 {
				io.CopyN(io.Discard, r, int64(4-pad))
			}
			entries, err := parseNTFileDesc(desc, order, pointerSize)
			if err != nil {
				verbosef("LoadELFCore: skipping malformed NT_FILE note: %v", err)
				continue
			}
			out = append(out, entries...)
		}
	}
	return out, nil
}

func readNoteHeader(r io.Reader, order binary.ByteOrder) (namesz, descsz, ntype uint32, ok bool, err error) {
	var hdr [12]byte
	_, err = io.ReadFull(r, hdr[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return 0, 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, 0, false, err
	}
	namesz = order.Uint32(hdr[0:4])
	descsz = order.Uint32(hdr[4:8])
	ntype = order.Uint32(hdr[8:12])
	return namesz, descsz, ntype, true, nil
}

func skipPadded(r io.Reader, n uint32) error {
	if pad := n % 4; pad != 0 {
		n += 4 - pad
	}
	_, err := io.CopyN(io.Discard, r, int64(n))
	if err == io.EOF {
		return nil
	}
	return err
}

func parseNTFileDesc(desc []byte, order binary.ByteOrder, pointerSize int) ([]ntFile, error) {
	readWord := func(b []byte) uint64 {
		if pointerSize == 8 {
			return order.Uint64(b)
		}
		return uint64(order.Uint32(b))
	}
	w := pointerSize
	if len(desc) < 2*w {
		return nil, fmt.Errorf("NT_FILE desc too short for header")
	}
	count := readWord(desc[0:w])
	off := 2 * w
	type rec struct{ start, end uint64 }
	recs := make([]rec, 0, count)
	for i := uint64(0); i < count; i++ {
		if off+3*w > len(desc) {
			return nil, fmt.Errorf("NT_FILE desc truncated in record table")
		}
		recs = append(recs, rec{start: readWord(desc[off : off+w]), end: readWord(desc[off+w : off+2*w])})
		off += 3 * w
	}
	out := make([]ntFile, 0, count)
	for _, rc := range recs {
		end := off
		for end < len(desc) && desc[end] != 0 {
			end++
		}
		if end >= len(desc) {
			return nil, fmt.Errorf("NT_FILE desc truncated in name table")
		}
		out = append(out, ntFile{start: rc.start, end: rc.end, path: string(desc[off:end])})
		off = end + 1
	}
	return out, nil
}

// addRangeFromSegments splits [start, end) by the AddressMap's existing
// PT_LOAD segments, registering one ModuleRange per underlying segment so
// that writability is derived from the real segment permissions rather
// than guessed.
func addRangeFromSegments(moduleDir *ModuleDirectory, addrMap *AddressMap, path string, start, end uint64) {
	addr := start
	for addr < end {
		seg, ok := addrMap.segments.find(addr)
		if !ok {
			addr++
			for addr < end {
				if _, ok := addrMap.segments.find(addr); ok {
					break
				}
				addr++
			}
			continue
		}
		segEnd := seg.addr + seg.size()
		rangeEnd := segEnd
		if end < rangeEnd {
			rangeEnd = end
		}
		flags := RangeFlags(0)
		if seg.readable {
			flags |= IsReadable
		}
		if seg.writable {
			flags |= IsWritable
		}
		moduleDir.AddRange(path, addr, rangeEnd, flags)
		addr = rangeEnd
	}
}
