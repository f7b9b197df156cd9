package pmm

import "github.com/A1Liu/os/kernel/mem"

const (
	// ClassCount is the number of block size classes. Class c holds blocks
	// of 2^c contiguous frames, so the largest block spans 8 Mb.
	ClassCount = 12

	// MaxClass is the largest size class.
	MaxClass = ClassCount - 1

	// MaxClassFrames is the number of frames in a MaxClass block.
	MaxClassFrames = 1 << MaxClass
)

// ClassFor returns the smallest class whose blocks hold at least count
// frames. Counts above MaxClassFrames yield a class >= ClassCount which no
// free list serves.
func ClassFor(count uint64) int {
	class := 0
	for uint64(1)<<class < count {
		class++
	}
	return class
}

// ClassSize returns the size in bytes of a block of the given class.
func ClassSize(class int) mem.Size {
	return mem.PageSize << class
}

// ClassFrames returns the number of frames in a block of the given class.
func ClassFrames(class int) uint64 {
	return 1 << class
}
