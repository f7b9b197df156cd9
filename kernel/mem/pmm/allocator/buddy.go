package allocator

import (
	"unsafe"

	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/bitmap"
	"github.com/A1Liu/os/kernel/mem/pmm"
)

var (
	errOutOfMemory  = &kernel.Error{Module: "buddy_alloc", Message: "out of memory"}
	errInvalidCount = &kernel.Error{Module: "buddy_alloc", Message: "page count must be positive"}
	errNoFreeMemory = &kernel.Error{Module: "buddy_alloc", Message: "memory map contains no free regions"}

	errMisaligned        = &kernel.Error{Module: "buddy_alloc", Message: "misaligned block address"}
	errOutOfRange        = &kernel.Error{Module: "buddy_alloc", Message: "frames outside of managed memory"}
	errNotUsable         = &kernel.Error{Module: "buddy_alloc", Message: "frames are not marked usable"}
	errNotFree           = &kernel.Error{Module: "buddy_alloc", Message: "claimed frames are not free"}
	errDoubleFree        = &kernel.Error{Module: "buddy_alloc", Message: "released frames are already free"}
	errMarkFree          = &kernel.Error{Module: "buddy_alloc", Message: "cannot change usability of free frames"}
	errBuddyState        = &kernel.Error{Module: "buddy_alloc", Message: "unexpected coalescing bit state"}
	errClassMismatch     = &kernel.Error{Module: "buddy_alloc", Message: "free block class does not match its free list"}
	errFreeListCorrupted = &kernel.Error{Module: "buddy_alloc", Message: "free list corrupted"}
	errSeedMismatch      = &kernel.Error{Module: "buddy_alloc", Message: "released memory does not match free memory"}
	errHeapCorrupted     = &kernel.Error{Module: "buddy_alloc", Message: "heap validation failed"}
)

// Block describes a physically contiguous run of frames returned by the
// allocator. The zero value is an empty block.
type Block struct {
	// Addr is the kernel address of the first frame.
	Addr uintptr

	// Size is the number of bytes that belong to the caller.
	Size mem.Size
}

// Empty returns true if b does not describe any memory.
func (b Block) Empty() bool {
	return b.Size == 0
}

// Frames returns the number of frames covered by b.
func (b Block) Frames() int {
	return int(b.Size.Pages())
}

// classInfo holds the state for one size class.
type classInfo struct {
	// freeList is the kernel address of the first free block of this
	// class or 0 if the class is empty.
	freeList uintptr

	// buddies holds one bit per pair of sibling blocks. A set bit means
	// that exactly one of the two siblings is free and waiting for its
	// partner. The top class never merges and has no bitmap.
	buddies bitmap.Bitmap
}

// BuddyAllocator implements a binary buddy allocator for physical frames.
// Free blocks are kept in per-class intrusive free lists stored inside the
// free memory itself; this is why every frame address crossing goes through
// the allocator's direct map.
//
// The allocator is not safe for concurrent use.
type BuddyAllocator struct {
	dm mem.DirectMap

	// freeMemory tracks the number of free bytes across all classes.
	freeMemory mem.Size

	// usablePages has a bit set for every frame that the allocator
	// manages; freePages has a bit set for every frame that currently
	// sits in a free list.
	usablePages bitmap.Bitmap
	freePages   bitmap.Bitmap

	classes [pmm.ClassCount]classInfo

	// endFrame is the first frame past the end of managed memory. It is
	// always a multiple of the top class size.
	endFrame pmm.Frame
}

// Init sets up the allocator state using the memory map supplied by the
// bootloader. The map entries are rewritten in place and the storage for the
// allocator bitmaps is carved out of the free regions before the remaining
// free memory is handed to the free lists.
func (alloc *BuddyAllocator) Init(dm mem.DirectMap, mmap []bootboot.MemoryMapEntry) *kernel.Error {
	*alloc = BuddyAllocator{dm: dm}

	regions, endAddr := ingestMemoryMap(mmap)
	if len(regions) == 0 {
		return errNoFreeMemory
	}

	bootMem := bootMemAllocator{dm: dm, regions: regions}

	topClassSize := uintptr(pmm.ClassSize(pmm.MaxClass))
	alloc.endFrame = pmm.FrameFromAddress(mem.AlignUp(uintptr(endAddr), topClassSize))

	frameCount := uint64(alloc.endFrame)
	alloc.usablePages = bootMem.carveBitmap(frameCount)
	alloc.freePages = bootMem.carveBitmap(frameCount)
	for class := 0; class < pmm.MaxClass; class++ {
		alloc.classes[class].buddies = bootMem.carveBitmap(frameCount >> (class + 1))
	}

	bootMem.printMemoryMap()

	var available mem.Size
	for _, r := range bootMem.Regions() {
		begin := mem.AlignUp(uintptr(r.base), uintptr(mem.PageSize))
		end := mem.AlignDown(uintptr(r.end()), uintptr(mem.PageSize))
		if end <= begin {
			continue
		}

		size := mem.Size(end - begin)
		available += size

		alloc.usablePages.SetRange(uint64(begin>>mem.PageShift), uint64(end>>mem.PageShift), true)
		alloc.ReleasePages(dm.KernelAddress(begin), int(size.Pages()))
	}

	if available != alloc.freeMemory {
		kfmt.Printf("[buddy_alloc] released %d bytes but free memory is %d\n", uint64(available), uint64(alloc.freeMemory))
		panicFn(errSeedMismatch)
	}

	alloc.Validate()

	size, unit := mem.FormatSize(alloc.freeMemory)
	kfmt.Printf("[buddy_alloc] bookkeeping: %d bytes, free memory: %d%s\n", uint64(bootMem.carved), size, unit)
	return nil
}

// AllocPages reserves exactly count physically contiguous frames. It returns
// errOutOfMemory if no free block can hold count frames.
func (alloc *BuddyAllocator) AllocPages(count int) (Block, *kernel.Error) {
	return alloc.allocRaw(count, true)
}

// TryAllocPages behaves like AllocPages but, if no block can hold count
// frames, it falls back to the largest smaller block that is available.
// Callers must use the returned Block.Size which may be less than requested.
func (alloc *BuddyAllocator) TryAllocPages(count int) (Block, *kernel.Error) {
	return alloc.allocRaw(count, false)
}

// ZeroedPages reserves exactly count frames and clears their contents.
func (alloc *BuddyAllocator) ZeroedPages(count int) (Block, *kernel.Error) {
	block, err := alloc.allocRaw(count, true)
	if err != nil {
		return block, err
	}

	mem.Memset(block.Addr, 0, block.Size)
	return block, nil
}

func (alloc *BuddyAllocator) allocRaw(count int, exact bool) (Block, *kernel.Error) {
	if count <= 0 {
		return Block{}, errInvalidCount
	}

	minClass := pmm.ClassFor(uint64(count))
	class := -1
	for c := minClass; c < pmm.ClassCount; c++ {
		if alloc.classes[c].freeList != 0 {
			class = c
			break
		}
	}

	if class == -1 {
		if exact {
			return Block{}, errOutOfMemory
		}

		for c := min(minClass, pmm.ClassCount) - 1; c >= 0; c-- {
			if alloc.classes[c].freeList != 0 {
				class, count = c, 1<<c
				break
			}
		}

		if class == -1 {
			return Block{}, errOutOfMemory
		}
	}

	size := mem.Size(count) << mem.PageShift
	alloc.freeMemory -= size

	begin := alloc.popFree(class)
	end := begin + pmm.Frame(count)

	if !alloc.usablePages.GetRangeAll(uint64(begin), uint64(end)) {
		kfmt.Printf("[buddy_alloc] claimed frames [%d, %d) are not all usable\n", uint64(begin), uint64(end))
		panicFn(errNotUsable)
	}
	if !alloc.freePages.GetRangeAll(uint64(begin), uint64(end)) {
		kfmt.Printf("[buddy_alloc] claimed frames [%d, %d) are not all free\n", uint64(begin), uint64(end))
		panicFn(errNotFree)
	}
	alloc.freePages.SetRange(uint64(begin), uint64(end), false)

	if class != pmm.MaxClass {
		_, slot := buddyOf(begin, class)
		if !alloc.classes[class].buddies.Get(slot) {
			kfmt.Printf("[buddy_alloc] class %d block at frame %d has a clear coalescing bit\n", class, uint64(begin))
			panicFn(errBuddyState)
		}
		alloc.classes[class].buddies.Set(slot, false)
	}

	alloc.split(begin, class, uint64(count))

	return Block{Addr: alloc.dm.KernelAddress(begin.Address()), Size: size}, nil
}

// split returns the part of the class block at frame that lies past the
// first count frames to the free lists of the lower classes.
func (alloc *BuddyAllocator) split(frame pmm.Frame, class int, count uint64) {
	remaining := count
	for i := class; remaining > 0 && i > 0; i-- {
		child := i - 1
		childSize := pmm.ClassFrames(child)
		buddies := alloc.classes[child].buddies

		_, slot := buddyOf(frame, child)
		if buddies.Get(slot) {
			kfmt.Printf("[buddy_alloc] class %d split at frame %d found a set coalescing bit\n", child, uint64(frame))
			panicFn(errBuddyState)
		}

		// The lower half is claimed entirely; keep splitting the upper
		// half.
		if remaining > childSize {
			remaining -= childSize
			frame += pmm.Frame(childSize)
			continue
		}

		alloc.pushFree(frame+pmm.Frame(childSize), child)
		buddies.Set(slot, true)

		if remaining == childSize {
			break
		}
	}
}

// ReleasePages returns count frames starting at kernel address addr to the
// allocator, merging them with their free buddies. The frames must be usable
// and currently allocated.
func (alloc *BuddyAllocator) ReleasePages(addr uintptr, count int) {
	if count <= 0 {
		return
	}

	begin, end := alloc.frameRange(addr, count)

	if !alloc.usablePages.GetRangeAll(uint64(begin), uint64(end)) {
		kfmt.Printf("[buddy_alloc] released frames [%d, %d) are not all usable\n", uint64(begin), uint64(end))
		panicFn(errNotUsable)
	}
	if alloc.freePages.GetRangeAny(uint64(begin), uint64(end)) {
		kfmt.Printf("[buddy_alloc] released frames [%d, %d) include free frames\n", uint64(begin), uint64(end))
		panicFn(errDoubleFree)
	}

	for frame := begin; frame < end; frame++ {
		alloc.releaseFrame(frame)
	}

	alloc.freeMemory += mem.Size(count) << mem.PageShift
	alloc.freePages.SetRange(uint64(begin), uint64(end), true)
}

// releaseFrame inserts a single frame into the free lists. Starting at class
// 0 the frame is merged with its buddy for as long as the buddy is free.
func (alloc *BuddyAllocator) releaseFrame(frame pmm.Frame) {
	page := frame
	for class := 0; class < pmm.MaxClass; class++ {
		buddy, slot := buddyOf(page, class)
		buddies := alloc.classes[class].buddies

		if !buddies.Get(slot) {
			buddies.Set(slot, true)
			alloc.pushFree(page, class)
			return
		}

		buddies.Set(slot, false)
		alloc.removeFree(buddy, class)
		page = min(page, buddy)
	}

	alloc.pushFree(page, pmm.MaxClass)
}

// MarkUsability flags count frames starting at kernel address addr as usable
// or unusable. None of the frames may be free. It returns the number of
// frames whose state changed.
func (alloc *BuddyAllocator) MarkUsability(addr uintptr, count int, usable bool) uint64 {
	if count <= 0 {
		return 0
	}

	begin, end := alloc.frameRange(addr, count)

	if alloc.freePages.GetRangeAny(uint64(begin), uint64(end)) {
		kfmt.Printf("[buddy_alloc] frames [%d, %d) include free frames\n", uint64(begin), uint64(end))
		panicFn(errMarkFree)
	}

	existing := alloc.usablePages.CountRange(uint64(begin), uint64(end))
	alloc.usablePages.SetRange(uint64(begin), uint64(end), usable)

	if usable {
		return uint64(count) - existing
	}
	return existing
}

// frameRange validates a caller supplied block address and returns the
// frame range it covers.
func (alloc *BuddyAllocator) frameRange(addr uintptr, count int) (pmm.Frame, pmm.Frame) {
	physAddr := alloc.dm.PhysicalAddress(addr)
	if physAddr&uintptr(mem.PageSize-1) != 0 {
		kfmt.Printf("[buddy_alloc] address 0x%x is not page aligned\n", addr)
		panicFn(errMisaligned)
	}

	begin := pmm.FrameFromAddress(physAddr)
	end := begin + pmm.Frame(count)
	if end > alloc.endFrame || end < begin {
		kfmt.Printf("[buddy_alloc] frames [%d, %d) exceed managed memory of %d frames\n", uint64(begin), uint64(end), uint64(alloc.endFrame))
		panicFn(errOutOfRange)
	}

	return begin, end
}

// FreeMemory returns the number of free bytes.
func (alloc *BuddyAllocator) FreeMemory() mem.Size {
	return alloc.freeMemory
}

// FrameCount returns the number of frames covered by the allocator
// bitmaps.
func (alloc *BuddyAllocator) FrameCount() uint64 {
	return uint64(alloc.endFrame)
}

// FrameState reports whether frame is managed by the allocator and whether it
// is currently free.
func (alloc *BuddyAllocator) FrameState(frame pmm.Frame) (usable, free bool) {
	if frame >= alloc.endFrame {
		return false, false
	}
	return alloc.usablePages.Get(uint64(frame)), alloc.freePages.Get(uint64(frame))
}

// ClassLen returns the number of blocks in the free list of class.
func (alloc *BuddyAllocator) ClassLen(class int) int {
	var count int
	alloc.ClassBlocks(class, func(_ pmm.Frame) bool {
		count++
		return true
	})
	return count
}

// ClassBlocks invokes visitor with the first frame of every block in the free
// list of class, starting at the list head. The scan stops when the visitor
// returns false.
func (alloc *BuddyAllocator) ClassBlocks(class int, visitor func(frame pmm.Frame) bool) {
	for addr := alloc.classes[class].freeList; addr != 0; {
		if !visitor(alloc.frameOf(addr)) {
			return
		}
		addr = (*freeBlock)(unsafe.Pointer(addr)).next
	}
}

// buddyOf returns the buddy of the class block at frame along with the index
// of the coalescing bit that the pair shares.
func buddyOf(frame pmm.Frame, class int) (pmm.Frame, uint64) {
	checkAligned(frame, class)
	return frame ^ pmm.Frame(pmm.ClassFrames(class)), uint64(frame) >> (class + 1)
}
