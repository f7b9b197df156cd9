// Package physmem provides host-side arenas that stand in for physical memory
// when the allocator runs outside the kernel. Physical address p of an arena
// is reached at Base()+p, matching the translation of a mem.DirectMap.
package physmem

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/A1Liu/os/kernel/mem"
)

var (
	// ErrInvalidSize is returned when the requested arena size is not a
	// positive multiple of the page size.
	ErrInvalidSize = errors.New("physmem: arena size must be a positive multiple of the page size")

	// ErrClosed is returned when operating on a released arena.
	ErrClosed = errors.New("physmem: arena is closed")
)

// Arena is a contiguous range of host memory that emulates physical memory
// starting at physical address zero.
type Arena struct {
	data []byte
}

// New reserves an arena of size bytes. The memory is zero-filled.
func New(size mem.Size) (*Arena, error) {
	if size == 0 || size%mem.PageSize != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	data, err := mapMemory(int(size))
	if err != nil {
		return nil, fmt.Errorf("physmem: reserve %d bytes: %w", size, err)
	}

	return &Arena{data: data}, nil
}

// Size returns the arena size in bytes.
func (a *Arena) Size() mem.Size {
	return mem.Size(len(a.data))
}

// Base returns the host address that corresponds to physical address zero.
func (a *Arena) Base() uintptr {
	if len(a.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.data[0]))
}

// Bytes exposes the arena contents.
func (a *Arena) Bytes() []byte {
	return a.data
}

// DirectMap returns the translation between arena physical addresses and
// host addresses.
func (a *Arena) DirectMap() mem.DirectMap {
	return mem.DirectMap{Base: a.Base()}
}

// Contains reports whether the physical range [phys, phys+size) lies inside
// the arena.
func (a *Arena) Contains(phys uint64, size mem.Size) bool {
	end := phys + uint64(size)
	return end >= phys && end <= uint64(len(a.data))
}

// Close releases the arena. Any address obtained from it becomes invalid.
func (a *Arena) Close() error {
	if a.data == nil {
		return ErrClosed
	}

	err := unmapMemory(a.data)
	a.data = nil
	return err
}

func uintptrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
