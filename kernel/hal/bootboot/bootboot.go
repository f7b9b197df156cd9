// Package bootboot provides access to the information block that a BOOTBOOT
// compliant loader hands to the kernel.
package bootboot

import "unsafe"

const (
	// headerSize is the size of the fixed part of the info block. The memory
	// map entries start right after it.
	headerSize = 128

	// entrySize is the size of a single memory map entry.
	entrySize = 16

	// typeMask selects the entry type bits that the loader stores in the low
	// nibble of the entry size.
	typeMask = 0xf
)

// Magic is the signature found at the start of a valid info block.
var Magic = [4]byte{'B', 'O', 'O', 'T'}

// Header describes the fixed-size part of the BOOTBOOT info block.
type Header struct {
	Magic    [4]byte
	Size     uint32
	Protocol uint8
	FbType   uint8
	NumCores uint16
	BspID    uint16
	Timezone int16
	Datetime [8]byte

	// Physical address and size of the initial ramdisk.
	InitrdPtr  uint64
	InitrdSize uint64

	// Framebuffer location and geometry.
	FbPtr      uint64
	FbSize     uint32
	FbWidth    uint32
	FbHeight   uint32
	FbScanline uint32

	// Architecture specific pointers (ACPI, SMBIOS, EFI, MP tables).
	Arch [8]uint64
}

// EntryType defines the type of a MemoryMapEntry.
type EntryType uint8

const (
	// EntryUsed marks memory that is already in use or reserved.
	EntryUsed EntryType = iota

	// EntryFree marks memory that is available to the kernel.
	EntryFree

	// EntryACPI marks ACPI tables and NVS memory.
	EntryACPI

	// EntryMMIO marks memory mapped IO regions.
	EntryMMIO
)

// String implements fmt.Stringer for EntryType.
func (t EntryType) String() string {
	switch t {
	case EntryUsed:
		return "used"
	case EntryFree:
		return "free"
	case EntryACPI:
		return "acpi"
	case EntryMMIO:
		return "mmio"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region as reported by the loader. The
// loader packs the region type into the low 4 bits of Size; use Length and
// Type to read them apart.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	Ptr uint64

	// The length of the memory region with the type in the low 4 bits.
	Size uint64
}

// Type returns the region type encoded in the entry size.
func (e *MemoryMapEntry) Type() EntryType {
	return EntryType(e.Size & typeMask)
}

// Length returns the region length with the type bits stripped.
func (e *MemoryMapEntry) Length() uint64 {
	return e.Size &^ typeMask
}

// IsFree returns true if the region is available to the kernel.
func (e *MemoryMapEntry) IsFree() bool {
	return e.Type() == EntryFree
}

var (
	infoData uintptr
)

// MemRegionVisitor defines a visitor function that gets invoked by
// VisitMemRegions for each memory region provided by the boot loader. The
// visitor must return true to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// SetInfoPtr updates the internal BOOTBOOT information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// InfoHeader returns the header of the info block or nil if no valid info
// block has been registered.
func InfoHeader() *Header {
	if infoData == 0 {
		return nil
	}

	hdr := (*Header)(unsafe.Pointer(infoData))
	if hdr.Magic != Magic {
		return nil
	}
	return hdr
}

// MemoryMap returns the memory map entries of the info block. The returned
// slice aliases the info block so callers may reorder and rewrite entries in
// place. An empty slice is returned if the info block is missing or does not
// contain any entries.
func MemoryMap() []MemoryMapEntry {
	hdr := InfoHeader()
	if hdr == nil || hdr.Size <= headerSize {
		return nil
	}

	count := (hdr.Size - headerSize) / entrySize
	if count == 0 {
		return nil
	}

	return unsafe.Slice((*MemoryMapEntry)(unsafe.Pointer(infoData+headerSize)), int(count))
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the BOOTBOOT info block that we received from the bootloader.
func VisitMemRegions(visitor MemRegionVisitor) {
	mmap := MemoryMap()
	for i := range mmap {
		if !visitor(&mmap[i]) {
			return
		}
	}
}
