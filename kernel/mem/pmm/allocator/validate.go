package allocator

import (
	"unsafe"

	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/pmm"
)

// Validate cross-checks the free lists against the free memory counter and
// the free frame bitmap. Every inconsistency is logged before the kernel is
// halted.
func (alloc *BuddyAllocator) Validate() {
	var (
		success    = true
		calculated mem.Size
	)

	for class := 0; class < pmm.ClassCount; class++ {
		var (
			size     = pmm.ClassSize(class)
			prevAddr uintptr
			steps    uint64
		)

		for addr := alloc.classes[class].freeList; addr != 0; {
			block := (*freeBlock)(unsafe.Pointer(addr))
			if block.class != int64(class) {
				kfmt.Printf("[buddy_alloc] block class = %d but was in class %d\n", block.class, class)
				success = false
			}

			if block.prev != prevAddr {
				kfmt.Printf("[buddy_alloc] block 0x%x in class %d links back to 0x%x instead of 0x%x\n", addr, class, block.prev, prevAddr)
				success = false
			}

			calculated += size

			// A list can never hold more blocks than there are frames.
			if steps++; steps > alloc.FrameCount() {
				kfmt.Printf("[buddy_alloc] free list of class %d contains a cycle\n", class)
				success = false
				break
			}

			prevAddr, addr = addr, block.next
		}
	}

	if calculated != alloc.freeMemory {
		kfmt.Printf("[buddy_alloc] calculated was %d but free memory was %d\n", uint64(calculated), uint64(alloc.freeMemory))
		success = false
	}

	if freeFrames := alloc.freePages.CountRange(0, alloc.freePages.Len()); mem.Size(freeFrames)<<mem.PageShift != alloc.freeMemory {
		kfmt.Printf("[buddy_alloc] %d frames are flagged free but free memory was %d\n", freeFrames, uint64(alloc.freeMemory))
		success = false
	}

	if !success {
		panicFn(errHeapCorrupted)
	}
}
