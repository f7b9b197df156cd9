package mem

import (
	"testing"

	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/stretchr/testify/require"
)

func TestDirectMapTranslation(t *testing.T) {
	dm := DirectMap{Base: 0x100000000}

	specs := []struct {
		phys, kernel uintptr
	}{
		{0, 0x100000000},
		{0x1000, 0x100001000},
		{0x800000, 0x100800000},
		{0xffffffff, 0x1ffffffff},
	}

	for specIndex, spec := range specs {
		require.Equal(t, spec.kernel, dm.KernelAddress(spec.phys), "[spec %d]", specIndex)
		require.Equal(t, spec.phys, dm.PhysicalAddress(spec.kernel), "[spec %d]", specIndex)
	}
}

func TestKernelDirectMap(t *testing.T) {
	require.Equal(t, KernelSpaceBegin, KernelDirectMap.Base)
	require.Equal(t, KernelSpaceBegin+0x2000, KernelDirectMap.KernelAddress(0x2000))
}

func TestDirectMapPreconditions(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
	}()

	panicFn = func(e interface{}) {
		panic(e)
	}

	dm := DirectMap{Base: 0x100000000}

	specs := []struct {
		name   string
		fn     func()
		expErr *kernel.Error
	}{
		{"kernel address below base", func() { dm.PhysicalAddress(0xfffff000) }, errBelowDirectMap},
		{"physical address equal to base", func() { dm.KernelAddress(0x100000000) }, errBeyondDirectMap},
		{"physical address above base", func() { dm.KernelAddress(0x200000000) }, errBeyondDirectMap},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			require.PanicsWithValue(t, spec.expErr, spec.fn)
		})
	}
}
