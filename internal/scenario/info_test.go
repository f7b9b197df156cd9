package scenario

import (
	"testing"
	"unsafe"

	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/stretchr/testify/require"
)

func TestBuildInfo(t *testing.T) {
	defer bootboot.SetInfoPtr(0)

	regions := []Region{
		{Base: 0x0, Length: 0x9f000, Type: "free"},
		{Base: 0x9f000, Length: 0x1000, Type: "used"},
		{Base: 0x7fe0000, Length: 0x20000, Type: "acpi"},
		{Base: 0xfffc0000, Length: 0x40000, Type: "mmio"},
	}

	info := BuildInfo(regions)
	require.Len(t, info, infoHeaderSize+len(regions)*infoEntrySize)
	require.Zero(t, uintptr(unsafe.Pointer(&info[0]))%8)

	bootboot.SetInfoPtr(uintptr(unsafe.Pointer(&info[0])))
	mmap := bootboot.MemoryMap()
	require.Len(t, mmap, len(regions))

	for i, r := range regions {
		require.Equal(t, uint64(r.Base), mmap[i].Ptr, "[entry %d]", i)
		require.Equal(t, uint64(r.Length), mmap[i].Length(), "[entry %d]", i)
		require.Equal(t, r.EntryType(), mmap[i].Type(), "[entry %d]", i)
	}
}

func TestEntries(t *testing.T) {
	entries := Entries([]Region{
		{Base: 0x1000, Length: 0x3000, Type: "free"},
		{Base: 0x4000, Length: 0x1000, Type: "mmio"},
	})

	require.Len(t, entries, 2)
	require.Equal(t, uint64(0x3001), entries[0].Size)
	require.True(t, entries[0].IsFree())
	require.Equal(t, bootboot.EntryMMIO, entries[1].Type())
	require.Equal(t, uint64(0x1000), entries[1].Length())
}
