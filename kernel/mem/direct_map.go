package mem

import (
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/kfmt"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errBelowDirectMap  = &kernel.Error{Module: "mem", Message: "kernel address below the direct map"}
	errBeyondDirectMap = &kernel.Error{Module: "mem", Message: "physical address beyond the direct map"}
)

// DirectMap translates between physical addresses and the kernel virtual
// addresses through which they are reached: physical address p is visible at
// Base+p.
type DirectMap struct {
	Base uintptr
}

// KernelDirectMap is the translation used by the running kernel.
var KernelDirectMap = DirectMap{Base: KernelSpaceBegin}

// PhysicalAddress returns the physical address behind kernelAddr. Passing an
// address below the direct map halts the kernel.
func (dm DirectMap) PhysicalAddress(kernelAddr uintptr) uintptr {
	if kernelAddr < dm.Base {
		kfmt.Printf("[mem] address 0x%x is below the direct map base 0x%x\n", kernelAddr, dm.Base)
		panicFn(errBelowDirectMap)
	}

	return kernelAddr - dm.Base
}

// KernelAddress returns the kernel virtual address of physAddr. Physical
// addresses at or above Base cannot be direct-mapped and halt the kernel.
func (dm DirectMap) KernelAddress(physAddr uintptr) uintptr {
	if physAddr >= dm.Base {
		kfmt.Printf("[mem] physical address 0x%x does not fit below the direct map base 0x%x\n", physAddr, dm.Base)
		panicFn(errBeyondDirectMap)
	}

	return physAddr + dm.Base
}
