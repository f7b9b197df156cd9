package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). Shifting a physical address
	// right by PageShift yields its frame number.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// KernelSpaceBegin is the virtual address at which the kernel maps all
	// of physical memory.
	KernelSpaceBegin = uintptr(0xffff800000000000)
)
