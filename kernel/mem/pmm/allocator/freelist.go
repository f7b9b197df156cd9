package allocator

import (
	"unsafe"

	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem/pmm"
)

// freeBlock is the header stored in the first bytes of every free block.
// The links hold kernel addresses of other free blocks in the same class, or
// 0 at either end of the list.
//
// A header is only valid while its block sits in a free list. Blocks handed
// out to callers are never read through this type.
type freeBlock struct {
	next  uintptr
	prev  uintptr
	class int64
}

// blockAt returns the kernel address of frame and the free block header
// stored there.
func (alloc *BuddyAllocator) blockAt(frame pmm.Frame) (uintptr, *freeBlock) {
	addr := alloc.dm.KernelAddress(frame.Address())
	return addr, (*freeBlock)(unsafe.Pointer(addr))
}

// frameOf returns the frame whose kernel address is addr.
func (alloc *BuddyAllocator) frameOf(addr uintptr) pmm.Frame {
	return pmm.FrameFromAddress(alloc.dm.PhysicalAddress(addr))
}

// checkAligned halts the kernel if frame is not the first frame of a class
// block.
func checkAligned(frame pmm.Frame, class int) {
	if uint64(frame)&(pmm.ClassFrames(class)-1) != 0 {
		kfmt.Printf("[buddy_alloc] frame %d is not aligned to a class %d block\n", uint64(frame), class)
		panicFn(errMisaligned)
	}
}

// pushFree inserts the class block starting at frame at the head of the
// class free list.
func (alloc *BuddyAllocator) pushFree(frame pmm.Frame, class int) {
	checkAligned(frame, class)

	info := &alloc.classes[class]
	addr, block := alloc.blockAt(frame)

	block.class = int64(class)
	block.prev = 0
	block.next = info.freeList

	if info.freeList != 0 {
		(*freeBlock)(unsafe.Pointer(info.freeList)).prev = addr
	}
	info.freeList = addr
}

// popFree removes the head of the class free list and returns its frame.
func (alloc *BuddyAllocator) popFree(class int) pmm.Frame {
	info := &alloc.classes[class]
	if info.freeList == 0 {
		kfmt.Printf("[buddy_alloc] pop from empty free list of class %d\n", class)
		panicFn(errFreeListCorrupted)
		return pmm.InvalidFrame
	}

	addr := info.freeList
	block := (*freeBlock)(unsafe.Pointer(addr))

	if block.class != int64(class) {
		kfmt.Printf("[buddy_alloc] block had class %d in free list of class %d\n", block.class, class)
		panicFn(errClassMismatch)
	}

	if block.prev != 0 {
		kfmt.Printf("[buddy_alloc] head of class %d free list links back to 0x%x\n", class, block.prev)
		panicFn(errFreeListCorrupted)
	}

	info.freeList = block.next
	if info.freeList != 0 {
		(*freeBlock)(unsafe.Pointer(info.freeList)).prev = 0
	}

	return alloc.frameOf(addr)
}

// removeFree unlinks the class block starting at frame from its free list.
func (alloc *BuddyAllocator) removeFree(frame pmm.Frame, class int) {
	checkAligned(frame, class)

	info := &alloc.classes[class]
	addr, block := alloc.blockAt(frame)

	if block.class != int64(class) {
		kfmt.Printf("[buddy_alloc] block at frame %d had class %d; expected class %d\n", uint64(frame), block.class, class)
		panicFn(errClassMismatch)
	}

	prev, next := block.prev, block.next
	if next != 0 {
		(*freeBlock)(unsafe.Pointer(next)).prev = prev
	}

	if prev != 0 {
		(*freeBlock)(unsafe.Pointer(prev)).next = next
		return
	}

	if info.freeList != addr {
		kfmt.Printf("[buddy_alloc] in class %d: free list=0x%x and block=0x%x\n", class, info.freeList, addr)
		alloc.dumpFreeList(class)
		panicFn(errFreeListCorrupted)
	}
	info.freeList = next
}

// dumpFreeList prints the blocks of a class free list. The walk stops after
// FrameCount entries in case the list contains a cycle.
func (alloc *BuddyAllocator) dumpFreeList(class int) {
	var counter uint64
	for addr := alloc.classes[class].freeList; addr != 0 && counter <= alloc.FrameCount(); counter++ {
		kfmt.Printf("\t%d: block=0x%x\n", counter, addr)
		addr = (*freeBlock)(unsafe.Pointer(addr)).next
	}
}
