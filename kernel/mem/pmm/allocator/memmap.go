package allocator

import (
	"unsafe"

	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
)

// region describes a free physical memory range. It shares the layout of
// bootboot.MemoryMapEntry so that a cleaned memory map can be reinterpreted
// in place.
type region struct {
	base   uint64
	length uint64
}

// end returns the physical address right after the region.
func (r *region) end() uint64 {
	return r.base + r.length
}

// ingestMemoryMap turns the memory map supplied by the boot loader into the
// list of free regions. The entries are rewritten in place: free entries are
// moved to the front (keeping their relative order), everything after them is
// dropped and the type bits are stripped from their sizes. The returned
// slice aliases mmap.
//
// ingestMemoryMap also returns the end address of physical memory which is
// taken from the last entry of the unfiltered map.
func ingestMemoryMap(mmap []bootboot.MemoryMapEntry) ([]region, uint64) {
	if len(mmap) == 0 {
		return nil, 0
	}

	last := &mmap[len(mmap)-1]
	endAddr := last.Ptr + last.Length()

	for i := range mmap {
		size, unit := mem.FormatSize(mem.Size(mmap[i].Length()))
		kfmt.Printf("[boot_mem_alloc] entry: type=%s base=0x%x size=%d%s\n", mmap[i].Type().String(), mmap[i].Ptr, size, unit)
	}

	// Bubble free entries towards the front. Only adjacent entries are
	// swapped so entries of the same kind keep their relative order.
	for i := 0; i < len(mmap); i++ {
		for j := len(mmap) - 1; j > i; j-- {
			if !mmap[j-1].IsFree() && mmap[j].IsFree() {
				mmap[j-1], mmap[j] = mmap[j], mmap[j-1]
			}
		}
	}

	freeCount := 0
	for ; freeCount < len(mmap) && mmap[freeCount].IsFree(); freeCount++ {
		mmap[freeCount].Size = mmap[freeCount].Length()
	}

	if freeCount == 0 {
		return nil, endAddr
	}

	return unsafe.Slice((*region)(unsafe.Pointer(&mmap[0])), freeCount), endAddr
}
