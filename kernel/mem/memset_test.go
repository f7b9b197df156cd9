package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(uintptr(0), 0x00, 0)

	for pageCount := uint32(1); pageCount <= 10; pageCount++ {
		buf := make([]byte, PageSize<<pageCount)
		for i := 0; i < len(buf); i++ {
			buf[i] = 0xFE
		}

		addr := uintptr(unsafe.Pointer(&buf[0]))
		Memset(addr, 0x00, Size(len(buf)))

		for i := 0; i < len(buf); i++ {
			if buf[i] != 0x00 {
				t.Fatalf("[block with %d pages] expected byte: %d to be 0x00; got 0x%x", pageCount, i, buf[i])
			}
		}
	}
}

func TestMemsetOddSize(t *testing.T) {
	buf := make([]byte, 37)
	Memset(uintptr(unsafe.Pointer(&buf[0])), 0xAB, 33)

	for i := 0; i < 33; i++ {
		require.Equal(t, byte(0xAB), buf[i], "byte %d", i)
	}
	for i := 33; i < len(buf); i++ {
		require.Zero(t, buf[i], "byte %d", i)
	}
}
