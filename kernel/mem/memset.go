package mem

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of storing one byte at a time it seeds the first byte and then doubles the
// initialized prefix with copy, which needs log2(size) calls.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))

	target[0] = value
	for filled := 1; filled < len(target); filled *= 2 {
		copy(target[filled:], target[:filled])
	}
}
