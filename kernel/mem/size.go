// Package mem contains memory-size arithmetic, page constants and the
// translation between physical addresses and the kernel's direct mapping.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

var sizeSuffixes = [...]string{"", " Kb", " Mb", " Gb"}

// FormatSize scales s down to the largest unit (up to Gb) that keeps the
// value at or above 1 and returns the truncated value with its unit suffix.
// It is meant for log output via kfmt, which cannot format floats.
func FormatSize(s Size) (uint64, string) {
	unit := 0
	for ; unit < len(sizeSuffixes)-1 && s >= Kb; unit++ {
		s /= Kb
	}

	return uint64(s), sizeSuffixes[unit]
}

// Pages returns the number of pages needed to hold s bytes.
func (s Size) Pages() uint64 {
	return uint64((s + PageSize - 1) >> PageShift)
}

// AlignUp rounds addr up to the next multiple of align. A zero align leaves
// addr unchanged.
func AlignUp(addr, align uintptr) uintptr {
	if align == 0 {
		return addr
	}
	return ((addr + align - 1) / align) * align
}

// AlignDown rounds addr down to a multiple of align. A zero align leaves addr
// unchanged.
func AlignDown(addr, align uintptr) uintptr {
	if align == 0 {
		return addr
	}
	return (addr / align) * align
}
