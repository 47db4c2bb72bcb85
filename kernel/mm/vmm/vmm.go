// Package vmm implements the AddressSpace collaborator: a per-environment
// page directory supporting insert, lookup-with-pte, remove and walk, plus
// the permission-bit vocabulary shared with the system-call surface. It
// generalizes gopheros' kernel/mm/vmm, which maintained a single,
// recursively-mapped page directory for the kernel's own address space; here
// every environment gets its own independent AddressSpace value and the
// kernel switches between them by loading a different CR3, rather than by
// walking a single active table through a recursive mapping trick.
package vmm

import "ringzero/kernel/mm"

// PTEFlag is a page-table-entry flag bit. The first five flags sit at the
// positions of the matching IA-32 hardware page-table-entry bits 0-4;
// FlagAvail (bit 9) is one of the bits the MMU ignores and leaves for OS use.
type PTEFlag uint32

const (
	// FlagPresent is set when the mapping is valid.
	FlagPresent PTEFlag = 1 << 0

	// FlagWritable is set when the mapping permits writes.
	FlagWritable PTEFlag = 1 << 1

	// FlagUser is set when user-mode code may access the mapping. If
	// clear, only kernel-mode code may access it.
	FlagUser PTEFlag = 1 << 2

	// FlagWriteThrough selects write-through caching for the mapping.
	FlagWriteThrough PTEFlag = 1 << 3

	// FlagCacheDisable disables caching for the mapping.
	FlagCacheDisable PTEFlag = 1 << 4

	// FlagAvail is reserved for OS use; the MMU never inspects it.
	FlagAvail PTEFlag = 1 << 9
)

// PermMask is the set of bits a caller may set on a requested permission
// word. Any other bit set causes INVAL in the system-call surface (spec.md
// §6).
const PermMask = FlagPresent | FlagWritable | FlagUser | FlagWriteThrough | FlagCacheDisable | FlagAvail

// PTE is a page-table entry: a physical frame plus its permission flags.
type PTE struct {
	Frame mm.Frame
	Flags PTEFlag
}

// HasFlags reports whether every bit in flags is set.
func (e PTE) HasFlags(flags PTEFlag) bool {
	return e.Flags&flags == flags
}

// AddressSpace is a per-environment page directory. The zero value, after a
// call to New, is an empty address space with no mappings.
type AddressSpace struct {
	pdtFrame mm.Frame
	entries  map[mm.Page]PTE
}

// New creates an empty address space. pdtFrame is the physical frame backing
// this address space's own page-directory page, reported by PhysAddr and
// PDTFrame; it plays no
// role in Insert/LookupPTE/Remove/Walk, which operate purely on the logical
// mapping table.
func New(pdtFrame mm.Frame) *AddressSpace {
	return &AddressSpace{
		pdtFrame: pdtFrame,
		entries:  make(map[mm.Page]PTE),
	}
}

// PhysAddr returns the physical address of this address space's page
// directory, suitable for loading into CR3 via cpu.LoadPageDirectory.
func (as *AddressSpace) PhysAddr() uintptr {
	return as.pdtFrame.Address()
}

// PDTFrame returns the physical frame backing this address space's own page
// directory. Insert/LookupPTE/Remove/Walk never touch it, since it is not a
// mapping this address space itself holds; a caller tearing down an address
// space entirely (env.Store.Destroy) must release this frame in addition to
// whatever Walk reports, or it leaks on every fork+destroy cycle.
func (as *AddressSpace) PDTFrame() mm.Frame {
	return as.pdtFrame
}

// Insert installs frame at page with the given flags, replacing any
// existing mapping at that page. It never allocates a page table of its own
// accord: callers that need a fresh frame must allocate it from the
// PageAllocator collaborator first.
func (as *AddressSpace) Insert(page mm.Page, frame mm.Frame, flags PTEFlag) {
	as.entries[page] = PTE{Frame: frame, Flags: flags}
}

// LookupPTE returns the page-table entry mapped at page, and whether one
// exists.
func (as *AddressSpace) LookupPTE(page mm.Page) (PTE, bool) {
	pte, ok := as.entries[page]
	return pte, ok
}

// Remove removes any mapping at page, reporting the frame that was mapped
// there (if any) so the caller can drop its reference count. Removing an
// address with no mapping is a no-op and returns ok=false.
func (as *AddressSpace) Remove(page mm.Page) (mm.Frame, bool) {
	pte, ok := as.entries[page]
	if !ok {
		return mm.InvalidFrame, false
	}
	delete(as.entries, page)
	return pte.Frame, true
}

// Walk calls fn once for every present mapping in this address space, in no
// particular order. Walk stops early if fn returns false.
func (as *AddressSpace) Walk(fn func(page mm.Page, pte PTE) bool) {
	for page, pte := range as.entries {
		if !fn(page, pte) {
			return
		}
	}
}

// Len returns the number of present mappings in this address space.
func (as *AddressSpace) Len() int {
	return len(as.entries)
}
