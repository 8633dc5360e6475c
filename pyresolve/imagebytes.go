package pyresolve

import "encoding/binary"

// readWord decodes a machine word directly out of a byte slice returned by
// FindMappedMemoryImage, honoring the dump's byte order. Used where the
// field of interest belongs to an object reached by following a raw
// pointer rather than by address-mapped reads, such as a string object's
// type and length words.
func readWord(order binary.ByteOrder, image []byte, offset, w uint64) uint64 {
	if w == 8 {
		return order.Uint64(image[offset : offset+8])
	}
	return uint64(order.Uint32(image[offset : offset+4]))
}

// matchesCString reports whether image contains want as a NUL-terminated
// C string starting at offset, without reading past the end of image.
func matchesCString(image []byte, offset uint64, want string) bool {
	end := offset + uint64(len(want))
	if end >= uint64(len(image)) {
		return false
	}
	if string(image[offset:end]) != want {
		return false
	}
	return image[end] == 0
}

// cStringFrom returns the length-byte string starting at offset. Callers
// must have already bounds-checked offset+length against len(image).
func cStringFrom(image []byte, offset, length uint64) string {
	return string(image[offset : offset+length])
}
