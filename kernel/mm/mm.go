// Package mm defines the address-space layout constants and the Page/Frame
// index types shared by the physical allocator (package pmm), the
// per-environment address space (package vmm) and the system-call surface.
// The types are generalized from gopheros' kernel/mm/page.go, which defined
// the same Page/Frame split for a single, global kernel address space; here
// every environment owns its own vmm.AddressSpace built out of these same
// Page/Frame values.
package mm

const (
	// PageShift is log2(PageSize).
	PageShift = uintptr(12)

	// PageSize is the MMU granularity this kernel assumes throughout: 4 KiB.
	PageSize = uintptr(1 << PageShift)

	// pageMask clears the low PageShift bits of an address.
	pageMask = ^(PageSize - 1)
)

const (
	// UTOP is the highest virtual address a user environment may directly
	// map or pass to a system call. Addresses at or above UTOP are kernel-
	// reserved and any syscall argument in that range fails INVAL.
	UTOP = uintptr(0xEEC00000)

	// UXSTACKTOP is the top of the single user-visible exception-stack
	// page. The page-fault upcall lands its User Trapframe somewhere at or
	// below this address.
	UXSTACKTOP = UTOP

	// KSTACKTOP is the top of the kernel-stack virtual address range, which
	// is carved up into one KSTKSIZE+KSTKGAP slot per CPU, descending.
	KSTACKTOP = uintptr(0xF0000000)

	// KSTKSIZE is the size in bytes of a single CPU's kernel stack.
	KSTKSIZE = uintptr(8 * PageSize)

	// KSTKGAP is the size in bytes of the unmapped guard region following
	// each per-CPU kernel stack, separating it from the next CPU's stack.
	KSTKGAP = uintptr(1 * PageSize)

	// NCPU is the maximum number of CPUs this kernel's per-CPU arrays and
	// kernel-stack slots are sized for.
	NCPU = 8
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by the page allocator when it cannot satisfy an
// allocation request.
const InvalidFrame = ^Frame(0)

// Valid returns true if this is not the sentinel InvalidFrame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address at the start of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns the Frame containing physAddr, rounding down to
// the containing frame if physAddr is not page-aligned.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & pageMask) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address at the start of this page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress returns the Page containing virtAddr, rounding down to the
// containing page if virtAddr is not page-aligned.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & pageMask) >> PageShift)
}

// PageAligned reports whether addr is a multiple of PageSize.
func PageAligned(addr uintptr) bool {
	return addr&(PageSize-1) == 0
}
