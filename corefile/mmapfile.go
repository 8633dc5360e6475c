package corefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

var errMmapClosed = errors.New("corefile: mmap file is closed")

// mmapFile is a read-only memory-mapped file. Unlike a plain os.File,
// ReadSliceAt returns a slice that points directly into the mapping, so
// segments built from it don't need their own copy of the dump's bytes.
type mmapFile struct {
	filename string
	data     []byte
}

// mmapOpen opens filename read-only and maps it into memory.
func mmapOpen(filename string) (*mmapFile, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &mmapFile{filename: filename, data: []byte{}}, nil
	}
	if size < 0 || size != int64(int(size)) {
		return nil, fmt.Errorf("corefile: file %q has an unusable size %d", filename, size)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("corefile: mmap %q: %w", filename, err)
	}
	return &mmapFile{filename: filename, data: data}, nil
}

// Name returns the path the file was opened from.
func (f *mmapFile) Name() string { return f.filename }

// Size returns the mapped file's size in bytes.
func (f *mmapFile) Size() uint64 { return uint64(len(f.data)) }

// ReadAt implements io.ReaderAt, so mmapFile can be handed straight to
// debug/elf's NewFile.
func (f *mmapFile) ReadAt(p []byte, offset int64) (int, error) {
	if f.data == nil {
		return 0, errMmapClosed
	}
	if offset < 0 {
		return 0, fmt.Errorf("corefile: negative offset %d", offset)
	}
	if uint64(offset) >= f.Size() {
		return 0, io.EOF
	}
	n := copy(p, f.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadSliceAt returns a slice of n bytes at offset, pointing directly into
// the mapping. No copy is made.
func (f *mmapFile) ReadSliceAt(offset, n uint64) ([]byte, error) {
	if f.data == nil {
		return nil, errMmapClosed
	}
	if offset+n > f.Size() {
		return nil, fmt.Errorf("corefile: out-of-bounds read at offset %d, size %d, file size %d", offset, n, f.Size())
	}
	end := offset + n
	return f.data[offset:end:end], nil
}

// Close unmaps the file.
func (f *mmapFile) Close() error {
	if f.data == nil {
		return nil
	}
	err := syscall.Munmap(f.data)
	*f = mmapFile{}
	return err
}
