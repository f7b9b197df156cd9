package kmain

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem/pmm/allocator"
	"github.com/stretchr/testify/require"
)

func TestKmain(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
		allocInitFn = allocator.Init
		validateHeapFn = func() { allocator.FrameAllocator.Validate() }
		pageTableSwitchFn = func() *kernel.Error { return nil }
		destroyBootTableFn = func() *kernel.Error { return nil }
		bootboot.SetInfoPtr(0)
	}()

	var calls []string
	panicFn = func(e interface{}) {
		panic(e)
	}
	allocInitFn = func() *kernel.Error {
		calls = append(calls, "init")
		return nil
	}
	validateHeapFn = func() {
		calls = append(calls, "validate")
	}
	pageTableSwitchFn = func() *kernel.Error {
		calls = append(calls, "switch")
		return nil
	}
	destroyBootTableFn = func() *kernel.Error {
		calls = append(calls, "destroy")
		return nil
	}

	t.Run("checkpoints", func(t *testing.T) {
		calls = nil
		require.PanicsWithValue(t, errKmainReturned, func() {
			Kmain(0)
		})
		require.Equal(t, []string{"init", "switch", "validate", "destroy", "validate"}, calls)
	})

	t.Run("allocator init error", func(t *testing.T) {
		calls = nil
		expErr := &kernel.Error{Module: "test", Message: "init failed"}
		allocInitFn = func() *kernel.Error {
			calls = append(calls, "init")
			return expErr
		}
		defer func() {
			allocInitFn = func() *kernel.Error { return nil }
		}()

		require.PanicsWithValue(t, expErr, func() {
			Kmain(0)
		})
		require.Equal(t, []string{"init"}, calls)
	})

	t.Run("page table switch error", func(t *testing.T) {
		calls = nil
		expErr := &kernel.Error{Module: "test", Message: "switch failed"}
		pageTableSwitchFn = func() *kernel.Error { return expErr }
		defer func() {
			pageTableSwitchFn = func() *kernel.Error { return nil }
		}()

		require.PanicsWithValue(t, expErr, func() {
			Kmain(0)
		})
		require.Empty(t, calls)
	})

	t.Run("destroy boot table error", func(t *testing.T) {
		calls = nil
		expErr := &kernel.Error{Module: "test", Message: "destroy failed"}
		destroyBootTableFn = func() *kernel.Error { return expErr }
		defer func() {
			destroyBootTableFn = func() *kernel.Error { return nil }
		}()

		require.PanicsWithValue(t, expErr, func() {
			Kmain(0)
		})
		require.Equal(t, []string{"validate"}, calls)
	})
}

func TestPrintLoaderMemory(t *testing.T) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer func() {
		kfmt.SetOutputSink(nil)
		bootboot.SetInfoPtr(0)
	}()

	// Header followed by three entries: free 8M, used 4K, free 16K. The
	// entry type lives in the low bits of the size.
	info := make([]uint64, 16+3*2)
	info[0] = uint64(0x544f4f42) | uint64(len(info)*8)<<32
	info[16], info[17] = 0x800000, 0x800000|uint64(bootboot.EntryFree)
	info[18], info[19] = 0x1000000, 0x1000|uint64(bootboot.EntryUsed)
	info[20], info[21] = 0x1001000, 0x4000|uint64(bootboot.EntryFree)
	bootboot.SetInfoPtr(uintptr(unsafe.Pointer(&info[0])))

	printLoaderMemory()
	require.Equal(t, "[kmain] loader reported 3 memory regions, 8 Mb free\n", buf.String())

	buf.Reset()
	bootboot.SetInfoPtr(0)
	printLoaderMemory()
	require.Equal(t, "[kmain] loader reported 0 memory regions, 0 free\n", buf.String())
}
