package kmain

import (
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/pmm/allocator"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn        = kfmt.Panic
	allocInitFn    = allocator.Init
	validateHeapFn = func() { allocator.FrameAllocator.Validate() }

	// pageTableSwitchFn installs the kernel's own page tables and
	// destroyBootTableFn releases the tables set up by the loader. Both
	// run between heap validation checkpoints.
	pageTableSwitchFn  = func() *kernel.Error { return nil }
	destroyBootTableFn = func() *kernel.Error { return nil }
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the BOOTBOOT info block provided by the
// bootloader.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(bootbootInfoPtr uintptr) {
	bootboot.SetInfoPtr(bootbootInfoPtr)
	printLoaderMemory()

	// The allocator validates its heap once seeding completes.
	if err := allocInitFn(); err != nil {
		panicFn(err)
		return
	}
	kfmt.Printf("[kmain] global allocator init complete\n")

	if err := pageTableSwitchFn(); err != nil {
		panicFn(err)
		return
	}
	validateHeapFn()

	if err := destroyBootTableFn(); err != nil {
		panicFn(err)
		return
	}
	validateHeapFn()

	kfmt.Printf("[kmain] memory init complete\n")

	// Use panicFn instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// printLoaderMemory logs the memory map as reported by the loader. It must run
// before the allocator ingests the map, which reorders it in place.
func printLoaderMemory() {
	var (
		regions int
		free    mem.Size
	)

	bootboot.VisitMemRegions(func(entry *bootboot.MemoryMapEntry) bool {
		regions++
		if entry.IsFree() {
			free += mem.Size(entry.Length())
		}
		return true
	})

	value, unit := mem.FormatSize(free)
	kfmt.Printf("[kmain] loader reported %d memory regions, %d%s free\n", regions, value, unit)
}
