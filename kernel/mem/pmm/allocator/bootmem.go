package allocator

import (
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/bitmap"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
	errBootAllocBadRequest  = &kernel.Error{Module: "boot_mem_alloc", Message: "invalid allocation size"}
)

// bootMemAllocator implements a rudimentary bump allocator which is used to
// obtain storage for the buddy allocator bookkeeping before the buddy
// allocator is able to serve memory itself.
//
// The allocator carves memory off the front of the free regions reported by
// the bootloader. Carved memory is never returned; once the kernel is
// properly initialized the shrunk regions are handed over to the buddy
// allocator, which makes sure that the carved bytes are never registered as
// free memory.
type bootMemAllocator struct {
	dm mem.DirectMap

	// regions is the list of free regions that still have room.
	regions []region

	// carved tracks the total number of bytes handed out, including
	// alignment padding.
	carved mem.Size
}

// Carve reserves size bytes aligned to align and returns the kernel address
// of the reserved memory. It halts the kernel if no region has enough room.
func (alloc *bootMemAllocator) Carve(size mem.Size, align uintptr) uintptr {
	if size == 0 {
		panicFn(errBootAllocBadRequest)
		return 0
	}

	if align == 0 {
		align = 1
	}
	size = mem.Size(mem.AlignUp(uintptr(size), align))

	for i := range alloc.regions {
		r := &alloc.regions[i]
		alignedBase := uint64(mem.AlignUp(uintptr(r.base), align))
		if alignedBase > r.end() || r.end()-alignedBase < uint64(size) {
			continue
		}

		alloc.carved += mem.Size(alignedBase+uint64(size)) - mem.Size(r.base)
		r.length = r.end() - alignedBase - uint64(size)
		r.base = alignedBase + uint64(size)
		return alloc.dm.KernelAddress(uintptr(alignedBase))
	}

	kfmt.Printf("[boot_mem_alloc] no region can hold %d bytes aligned to %d\n", uint64(size), align)
	panicFn(errBootAllocOutOfMemory)
	return 0
}

// carveBitmap reserves storage for a bitmap with bitCount bits and clears it.
func (alloc *bootMemAllocator) carveBitmap(bitCount uint64) bitmap.Bitmap {
	if bitCount == 0 {
		return bitmap.Bitmap{}
	}

	b := bitmap.FromRaw(alloc.Carve(bitmap.BytesFor(bitCount), 8), bitCount)
	b.SetAll(false)
	return b
}

// Regions returns the free regions that are left after carving.
func (alloc *bootMemAllocator) Regions() []region {
	return alloc.regions
}

// printMemoryMap prints out the free regions that will be handed to the
// buddy allocator.
func (alloc *bootMemAllocator) printMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] free memory regions:\n")
	var totalFree mem.Size
	for i := range alloc.regions {
		r := &alloc.regions[i]
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d\n", r.base, r.end(), r.length)
		totalFree += mem.Size(r.length)
	}
	kfmt.Printf("[boot_mem_alloc] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}
