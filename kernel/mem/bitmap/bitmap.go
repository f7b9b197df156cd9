// Package bitmap provides a fixed-capacity bit vector whose storage is a raw
// memory region owned by the caller. It never allocates, which makes it usable
// for bookkeeping that must exist before the Go allocator does.
package bitmap

import (
	"math/bits"
	"unsafe"

	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
)

const wordBits = 64

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errOutOfRange = &kernel.Error{Module: "bitmap", Message: "bit index out of range"}
)

// Bitmap is a vector of Len() bits stored LSB-first in 64-bit words. The zero
// value is an empty bitmap.
type Bitmap struct {
	words []uint64
	count uint64
}

// BytesFor returns the number of storage bytes FromRaw needs for bitCount
// bits. The result is always a multiple of 8.
func BytesFor(bitCount uint64) mem.Size {
	return mem.Size((bitCount+wordBits-1)/wordBits) << mem.PointerShift
}

// FromRaw overlays a bitmap of bitCount bits on the memory at addr, which must
// be 8-byte aligned and hold at least BytesFor(bitCount) bytes. The existing
// contents are used as-is; call SetAll to initialize them.
func FromRaw(addr uintptr, bitCount uint64) Bitmap {
	wordCount := (bitCount + wordBits - 1) / wordBits
	if wordCount == 0 {
		return Bitmap{}
	}

	return Bitmap{
		words: unsafe.Slice((*uint64)(unsafe.Pointer(addr)), int(wordCount)),
		count: bitCount,
	}
}

// Len returns the number of bits in the bitmap.
func (b Bitmap) Len() uint64 {
	return b.count
}

// SetAll sets every bit to value.
func (b Bitmap) SetAll(value bool) {
	fill := uint64(0)
	if value {
		fill = ^uint64(0)
	}

	for i := range b.words {
		b.words[i] = fill
	}
}

// Get returns the value of bit index.
func (b Bitmap) Get(index uint64) bool {
	b.checkIndex(index)
	return b.words[index/wordBits]&(1<<(index%wordBits)) != 0
}

// Set updates bit index to value.
func (b Bitmap) Set(index uint64, value bool) {
	b.checkIndex(index)
	if value {
		b.words[index/wordBits] |= 1 << (index % wordBits)
	} else {
		b.words[index/wordBits] &^= 1 << (index % wordBits)
	}
}

// GetRangeAll reports whether every bit in [begin, end) is set. An empty
// range yields true.
func (b Bitmap) GetRangeAll(begin, end uint64) bool {
	all := true
	b.visitRange(begin, end, func(word int, mask uint64) bool {
		all = b.words[word]&mask == mask
		return all
	})
	return all
}

// GetRangeAny reports whether at least one bit in [begin, end) is set.
func (b Bitmap) GetRangeAny(begin, end uint64) bool {
	found := false
	b.visitRange(begin, end, func(word int, mask uint64) bool {
		found = b.words[word]&mask != 0
		return !found
	})
	return found
}

// SetRange sets every bit in [begin, end) to value.
func (b Bitmap) SetRange(begin, end uint64, value bool) {
	b.visitRange(begin, end, func(word int, mask uint64) bool {
		if value {
			b.words[word] |= mask
		} else {
			b.words[word] &^= mask
		}
		return true
	})
}

// CountRange returns the number of set bits in [begin, end).
func (b Bitmap) CountRange(begin, end uint64) uint64 {
	var count uint64
	b.visitRange(begin, end, func(word int, mask uint64) bool {
		count += uint64(bits.OnesCount64(b.words[word] & mask))
		return true
	})
	return count
}

// visitRange invokes fn with a word index and the mask of bits from that word
// that fall inside [begin, end). Iteration stops when fn returns false.
func (b Bitmap) visitRange(begin, end uint64, fn func(word int, mask uint64) bool) {
	if begin > end || end > b.count {
		kfmt.Printf("[bitmap] range [%d, %d) outside bitmap of %d bits\n", begin, end, b.count)
		panicFn(errOutOfRange)
		return
	}

	for begin < end {
		word := begin / wordBits
		lo := begin % wordBits
		hi := uint64(wordBits)
		if wordEnd := (word + 1) * wordBits; end < wordEnd {
			hi = end % wordBits
		}

		mask := ^uint64(0) << lo
		if hi < wordBits {
			mask &= (1 << hi) - 1
		}

		if !fn(int(word), mask) {
			return
		}
		begin = (word + 1) * wordBits
	}
}

func (b Bitmap) checkIndex(index uint64) {
	if index >= b.count {
		kfmt.Printf("[bitmap] bit %d outside bitmap of %d bits\n", index, b.count)
		panicFn(errOutOfRange)
	}
}
