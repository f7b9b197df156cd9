package scenario

import (
	"encoding/binary"
	"unsafe"

	"github.com/A1Liu/os/kernel/hal/bootboot"
)

const (
	infoHeaderSize = 128
	infoEntrySize  = 16
)

// BuildInfo encodes regions as a BOOTBOOT info block. The region type is
// stored in the low 4 bits of each entry size like a real loader does. The
// returned buffer is 8-byte aligned so it can be handed to
// bootboot.SetInfoPtr.
func BuildInfo(regions []Region) []byte {
	size := infoHeaderSize + len(regions)*infoEntrySize
	words := make([]uint64, size/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)

	copy(buf[0:4], bootboot.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))

	for i, r := range regions {
		off := infoHeaderSize + i*infoEntrySize
		binary.LittleEndian.PutUint64(buf[off:], uint64(r.Base))
		binary.LittleEndian.PutUint64(buf[off+8:], uint64(r.Length)|uint64(r.EntryType()))
	}

	return buf
}

// Entries returns the memory map entries BuildInfo encodes for regions.
func Entries(regions []Region) []bootboot.MemoryMapEntry {
	entries := make([]bootboot.MemoryMapEntry, len(regions))
	for i, r := range regions {
		entries[i] = bootboot.MemoryMapEntry{
			Ptr:  uint64(r.Base),
			Size: uint64(r.Length) | uint64(r.EntryType()),
		}
	}
	return entries
}
