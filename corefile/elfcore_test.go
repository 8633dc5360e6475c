package corefile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildNTFileDesc packs an NT_FILE note descriptor (fs/binfmt_elf.c's
// fill_files_note layout: count, page_size, then count (start,end,file_ofs)
// triples, then count NUL-terminated paths) for pointerSize-wide words.
func buildNTFileDesc(order binary.ByteOrder, pointerSize int, pageSize uint64, entries []ntFile) []byte {
	w := pointerSize
	putWord := func(buf []byte, v uint64) {
		if w == 8 {
			order.PutUint64(buf, v)
		} else {
			order.PutUint32(buf, uint32(v))
		}
	}

	var buf []byte
	header := make([]byte, 2*w)
	putWord(header[0:w], uint64(len(entries)))
	putWord(header[w:2*w], pageSize)
	buf = append(buf, header...)

	for _, e := range entries {
		rec := make([]byte, 3*w)
		putWord(rec[0:w], e.start)
		putWord(rec[w:2*w], e.end)
		putWord(rec[2*w:3*w], 0)
		buf = append(buf, rec...)
	}
	for _, e := range entries {
		buf = append(buf, []byte(e.path)...)
		buf = append(buf, 0)
	}
	return buf
}

func TestParseNTFileDesc(t *testing.T) {
	order := binary.LittleEndian
	// Addresses must fit the word size: a 32-bit core cannot record a
	// 64-bit address, so each word size has its own table.
	wantBySize := map[int][]ntFile{
		4: {
			{start: 0x08048000, end: 0x08049000, path: "/usr/bin/python3"},
			{start: 0xf7d00000, end: 0xf7d21000, path: "/usr/lib/i386-linux-gnu/libpython3.8.so.1.0"},
		},
		8: {
			{start: 0x400000, end: 0x401000, path: "/usr/bin/python3"},
			{start: 0x7f0000000000, end: 0x7f0000021000, path: "/usr/lib/x86_64-linux-gnu/libpython3.8.so.1.0"},
		},
	}

	for _, pointerSize := range []int{4, 8} {
		want := wantBySize[pointerSize]
		desc := buildNTFileDesc(order, pointerSize, 0x1000, want)
		got, err := parseNTFileDesc(desc, order, pointerSize)
		if err != nil {
			t.Fatalf("pointerSize=%d: parseNTFileDesc: %v", pointerSize, err)
		}
		if len(got) != len(want) {
			t.Fatalf("pointerSize=%d: got %d entries, want %d", pointerSize, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pointerSize=%d: entry %d = %+v, want %+v", pointerSize, i, got[i], want[i])
			}
		}
	}
}

func TestParseNTFileDescTruncated(t *testing.T) {
	order := binary.LittleEndian
	desc := buildNTFileDesc(order, 8, 0x1000, []ntFile{{start: 1, end: 2, path: "/a"}})

	if _, err := parseNTFileDesc(desc[:len(desc)-4], order, 8); err == nil {
		t.Errorf("parseNTFileDesc on truncated name table succeeded, want error")
	}
	if _, err := parseNTFileDesc(desc[:10], order, 8); err == nil {
		t.Errorf("parseNTFileDesc on truncated record table succeeded, want error")
	}
}

func TestSkipPadded(t *testing.T) {
	r := bytes.NewReader([]byte("abc\x00defg"))
	if err := skipPadded(r, 3); err != nil {
		t.Fatalf("skipPadded: %v", err)
	}
	// 3 bytes rounds up to 4, so the next byte read should be 'd'.
	rest := make([]byte, 1)
	if _, err := r.Read(rest); err != nil {
		t.Fatalf("Read after skipPadded: %v", err)
	}
	if rest[0] != 'd' {
		t.Errorf("byte after skipPadded(3)=%q, want 'd'", rest[0])
	}
}
