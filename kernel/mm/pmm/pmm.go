// Package pmm implements the PageAllocator collaborator: a reference-counted
// physical page allocator with an optional zeroing allocation mode. It is
// grounded on gopheros' two-phase kernel/mm/pmm.go (a bootstrap allocator
// handing off to a steady-state bitmap allocator) but simplified to a single
// free-list-backed allocator sized up front, since ringzero's core does not
// need to bootstrap itself out of the same physical memory it is managing:
// spec.md treats the allocator's own bring-up as an external concern and
// only requires that the core can allocate, zero, reference-count and free
// frames through a narrow interface.
package pmm

import (
	"ringzero/kernel"
	"ringzero/kernel/mm"
)

var errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}

// Allocator is a reference-counted physical frame allocator. Every frame it
// manages is owned either by the free list or by one or more address-space
// mappings; the sum of the two is invariant across the allocator's lifetime
// (spec.md §8).
type Allocator struct {
	refcount []uint16
	free     []mm.Frame
	zeroFn   func(addr uintptr, size uintptr)
}

// New creates an Allocator managing numFrames contiguous frames starting at
// physical frame 0. zeroFn is called to clear a frame's contents for
// zeroing allocations and page_alloc; pass kernel.Memset in production code.
func New(numFrames int, zeroFn func(uintptr, uintptr)) *Allocator {
	a := &Allocator{
		refcount: make([]uint16, numFrames),
		free:     make([]mm.Frame, numFrames),
		zeroFn:   zeroFn,
	}
	for i := 0; i < numFrames; i++ {
		a.free[i] = mm.Frame(numFrames - 1 - i)
	}
	return a
}

// Alloc reserves a free frame with an initial reference count of one. If
// zero is true, the frame's contents are cleared before it is returned.
func (a *Allocator) Alloc(zero bool) (mm.Frame, *kernel.Error) {
	if len(a.free) == 0 {
		return mm.InvalidFrame, errOutOfMemory
	}

	f := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.refcount[f] = 1

	if zero && a.zeroFn != nil {
		a.zeroFn(f.Address(), mm.PageSize)
	}

	return f, nil
}

// IncRef increments f's reference count. It is called whenever a mapping to
// f is duplicated, e.g. by page_map.
func (a *Allocator) IncRef(f mm.Frame) {
	a.refcount[f]++
}

// DecRef decrements f's reference count and returns f to the free list once
// the count reaches zero, reporting whether that happened.
func (a *Allocator) DecRef(f mm.Frame) bool {
	if a.refcount[f] == 0 {
		return false
	}
	a.refcount[f]--
	if a.refcount[f] == 0 {
		a.free = append(a.free, f)
		return true
	}
	return false
}

// RefCount returns f's current reference count. A frame on the free list
// always has a reference count of zero.
func (a *Allocator) RefCount(f mm.Frame) uint16 {
	return a.refcount[f]
}

// FreeCount returns the number of frames currently on the free list. Used by
// the §8 invariant that free-list length plus the sum of all reference
// counts equals the total number of managed frames.
func (a *Allocator) FreeCount() int {
	return len(a.free)
}

// Total returns the number of frames this allocator manages.
func (a *Allocator) Total() int {
	return len(a.refcount)
}
