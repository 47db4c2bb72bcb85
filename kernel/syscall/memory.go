package syscall

import (
	"ringzero/kernel"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/vmm"
	"unsafe"
)

// validVA reports whether va is a syscall-legal user address: below UTOP
// and page-aligned (spec.md §6, §8's boundary behaviors).
func validVA(va uintptr) bool {
	return va < mm.UTOP && mm.PageAligned(va)
}

// validPerm reports whether perm is a legal permission word: user and
// present must both be set, and no bit outside vmm.PermMask may be set
// (spec.md §6's permission mask).
func validPerm(perm uint32) bool {
	p := vmm.PTEFlag(perm)
	if p&(vmm.FlagUser|vmm.FlagPresent) != vmm.FlagUser|vmm.FlagPresent {
		return false
	}
	return p&^vmm.PermMask == 0
}

// checkUserRange validates that every page in [addr, addr+length) is
// mapped in as with at least the flags in need.
func checkUserRange(as *vmm.AddressSpace, addr, length uintptr, need vmm.PTEFlag) bool {
	if length == 0 {
		return true
	}
	if addr >= mm.UTOP || addr+length > mm.UTOP || addr+length < addr {
		return false
	}
	start := mm.PageFromAddress(addr)
	end := mm.PageFromAddress(addr + length - 1)
	for p := start; p <= end; p++ {
		pte, ok := as.LookupPTE(p)
		if !ok || !pte.HasFlags(need) {
			return false
		}
	}
	return true
}

// userBytes validates and copies length bytes of user memory starting at
// va out of as. It walks page by page since the requested range may span
// more than one mapping, reading through each mapped frame's physical
// address with kernel.Memcopy, the same physical-address access the
// production allocator's zeroFn (kernel.Memset) makes.
func userBytes(as *vmm.AddressSpace, va uintptr, length uint32, need vmm.PTEFlag) ([]byte, bool) {
	if length == 0 {
		return nil, true
	}
	if !checkUserRange(as, va, uintptr(length), need) {
		return nil, false
	}

	out := make([]byte, length)
	remaining := uintptr(length)
	addr := va
	off := 0
	for remaining > 0 {
		page := mm.PageFromAddress(addr)
		pte, _ := as.LookupPTE(page)
		pageOff := addr - page.Address()
		n := mm.PageSize - pageOff
		if n > remaining {
			n = remaining
		}
		src := pte.Frame.Address() + pageOff
		kernel.Memcopy(src, uintptr(unsafe.Pointer(&out[off])), n)
		addr += n
		remaining -= n
		off += int(n)
	}
	return out, true
}
