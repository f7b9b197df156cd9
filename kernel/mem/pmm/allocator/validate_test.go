package allocator

import (
	"testing"
	"unsafe"

	"github.com/A1Liu/os/kernel/mem"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	specs := []struct {
		name    string
		corrupt func(alloc *BuddyAllocator, blockAddr uintptr)
	}{
		{
			"free memory counter drift",
			func(alloc *BuddyAllocator, _ uintptr) {
				alloc.freeMemory += mem.PageSize
			},
		},
		{
			"class tag mismatch",
			func(_ *BuddyAllocator, blockAddr uintptr) {
				(*freeBlock)(unsafe.Pointer(blockAddr)).class = 3
			},
		},
		{
			"broken back link",
			func(_ *BuddyAllocator, blockAddr uintptr) {
				(*freeBlock)(unsafe.Pointer(blockAddr)).prev = blockAddr
			},
		},
		{
			"cyclic free list",
			func(_ *BuddyAllocator, blockAddr uintptr) {
				(*freeBlock)(unsafe.Pointer(blockAddr)).next = blockAddr
			},
		},
		{
			"free frame bitmap drift",
			func(alloc *BuddyAllocator, _ uintptr) {
				alloc.freePages.Set(1, true)
			},
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			alloc, arena := newScenarioD(t)
			mockPanic(t)

			require.NotPanics(t, alloc.Validate)

			spec.corrupt(alloc, arena.Base()+0x4000)
			require.PanicsWithValue(t, errHeapCorrupted, alloc.Validate)
		})
	}
}

func TestValidateAfterOperations(t *testing.T) {
	alloc, _ := newScenarioA(t)
	mockPanic(t)

	var blocks []Block
	for _, count := range []int{1, 7, 64, 300, 2, 1000} {
		block, err := alloc.AllocPages(count)
		require.Nil(t, err)
		blocks = append(blocks, block)
		require.NotPanics(t, alloc.Validate)
	}

	for _, block := range blocks {
		alloc.ReleasePages(block.Addr, block.Frames())
		require.NotPanics(t, alloc.Validate)
	}
}
