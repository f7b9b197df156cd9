package pmm

import (
	"testing"

	"github.com/A1Liu/os/kernel/mem"
	"github.com/stretchr/testify/assert"
)

func TestClassFor(t *testing.T) {
	specs := []struct {
		count    uint64
		expClass int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{1000, 10},
		{1024, 10},
		{1025, 11},
		{2048, 11},
		{2049, 12},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.expClass, ClassFor(spec.count), "[spec %d] count %d", specIndex, spec.count)
	}
}

func TestClassSize(t *testing.T) {
	assert.Equal(t, 4*mem.Kb, ClassSize(0))
	assert.Equal(t, 16*mem.Kb, ClassSize(2))
	assert.Equal(t, 8*mem.Mb, ClassSize(MaxClass))
	assert.Equal(t, uint64(2048), ClassFrames(MaxClass))
	assert.Equal(t, uint64(MaxClassFrames), ClassFrames(MaxClass))
}
