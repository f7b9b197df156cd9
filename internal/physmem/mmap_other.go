//go:build !unix

package physmem

import "github.com/A1Liu/os/kernel/mem"

// mapMemory falls back to a Go allocation. The slice is over-allocated so the
// arena base can be page aligned like a real mapping.
func mapMemory(size int) ([]byte, error) {
	raw := make([]byte, size+int(mem.PageSize))
	off := 0
	for ; off < len(raw); off++ {
		if uintptrOf(raw[off:])%uintptr(mem.PageSize) == 0 {
			break
		}
	}
	return raw[off : off+size : off+size], nil
}

func unmapMemory(_ []byte) error {
	return nil
}
