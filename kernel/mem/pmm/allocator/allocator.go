// Package allocator implements the kernel's physical memory allocator.
package allocator

import (
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/pmm"
	"github.com/A1Liu/os/kernel/sync"
)

var (
	// FrameAllocator is a BuddyAllocator instance that serves as the
	// primary allocator for reserving pages.
	FrameAllocator BuddyAllocator

	// frameLock serializes requests that reach FrameAllocator through the
	// pmm frame allocator hook. BuddyAllocator itself holds no lock.
	frameLock sync.Spinlock

	// The following variables are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn     = kfmt.Panic
	memoryMapFn = bootboot.MemoryMap
	directMap   = mem.KernelDirectMap
)

// allocFrame is a helper that delegates a frame allocation request to the
// FrameAllocator instance. This function is passed as an argument to
// pmm.SetFrameAllocator instead of FrameAllocator.AllocPages. The latter
// confuses the compiler's escape analysis into thinking that FrameAllocator
// escapes to heap.
func allocFrame() (pmm.Frame, *kernel.Error) {
	frameLock.Acquire()
	defer frameLock.Release()

	block, err := FrameAllocator.AllocPages(1)
	if err != nil {
		return pmm.InvalidFrame, err
	}

	return FrameAllocator.frameOf(block.Addr), nil
}

// Init sets up the kernel physical memory allocation sub-system using the
// memory map provided by the bootloader.
func Init() *kernel.Error {
	if err := FrameAllocator.Init(directMap, memoryMapFn()); err != nil {
		return err
	}

	pmm.SetFrameAllocator(allocFrame)
	return nil
}
