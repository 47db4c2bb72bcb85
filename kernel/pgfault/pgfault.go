// Package pgfault implements the page-fault upcall reflection spec.md §4.E
// describes: when a user-mode environment faults and has registered a
// handler, the fault is reflected back into that environment as a
// UTrapframe on its exception stack rather than fatally destroying it. It
// is grounded on the original kernel's page_fault_handler, generalized from
// a single global curenv into an explicit Handler collaborator the trap
// dispatcher drives.
package pgfault

import (
	"ringzero/kernel"
	"ringzero/kernel/env"
	"ringzero/kernel/kfmt"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/vmm"
	"ringzero/kernel/trapframe"
	"unsafe"
)

var errNoUpcall = &kernel.Error{Module: "pgfault", Message: "no page fault upcall registered"}

// utfSize is the number of bytes a UTrapframe occupies on the user
// exception stack.
const utfSize = uintptr(unsafe.Sizeof(trapframe.UTrapframe{}))

// Handler reflects page faults into an environment's registered upcall, or
// reports that the environment must be destroyed.
type Handler struct{}

// Reflect implements the recursive-fault-aware landing-address logic from
// spec.md §4.E. faultVA is the faulting address (read from CR2 by the
// caller); tf is the trap frame the hardware and entry stub built for this
// fault, and is rewritten in place to resume at the upcall on success.
//
// On success it returns nil and tf.EIP/tf.ESP point at the upcall entry
// with a UTrapframe installed below it. On failure — no upcall registered,
// or the landing range is not a writable part of e's address space — it
// returns a non-nil error and the caller must destroy e; Reflect performs
// no destruction itself; noUpcall reports whether this was the "no upcall"
// case, in which the diagnostic from spec.md §4.E's second bullet should
// be printed before destroying e.
func (Handler) Reflect(e *env.Environment, faultVA uintptr, tf *trapframe.Trapframe) (noUpcall bool, err *kernel.Error) {
	if e.PgFaultUpcall == 0 {
		return true, errNoUpcall
	}

	utf := trapframe.UTrapframe{
		FaultVA: uint32(faultVA),
		ErrCode: tf.ErrCode,
		Regs:    tf.Regs,
		EIP:     tf.EIP,
		EFlags:  tf.EFlags,
		ESP:     tf.ESP,
	}

	esp := uintptr(tf.ESP)
	if esp >= mm.UXSTACKTOP-mm.PageSize && esp < mm.UXSTACKTOP {
		// Already on the exception stack: this is a fault that occurred
		// inside a previous upcall. Leave one scratch word below the
		// caller's frame before pushing the new one, mirroring the
		// original's tf_esp -= 4.
		esp -= 4
	} else {
		esp = mm.UXSTACKTOP
	}
	esp -= utfSize

	if !writableUserRange(e.AS, esp, utfSize) {
		return false, &kernel.Error{Module: "pgfault", Message: "exception stack overflow"}
	}

	writeUTrapframe(e.AS, esp, &utf)

	tf.ESP = uint32(esp)
	tf.EIP = uint32(e.PgFaultUpcall)
	return false, nil
}

// FaultMessage renders the diagnostic spec.md §4.E restores from the
// original kernel's "[envid] user fault va ip" line, printed just before an
// environment with no registered upcall is destroyed.
func FaultMessage(e *env.Environment, faultVA uintptr, eip uint32) {
	kfmt.Printf("[%08x] user fault va %08x ip %08x\n", uint32(e.ID), uint32(faultVA), eip)
}

// writableUserRange reports whether every byte of [addr, addr+size) falls
// within a single present, user-writable page of as. The exception stack
// is exactly one page, so a UTrapframe that would straddle two pages is
// itself an overflow.
func writableUserRange(as *vmm.AddressSpace, addr, size uintptr) bool {
	if addr+size < addr {
		return false
	}
	startPage := mm.PageFromAddress(addr)
	endPage := mm.PageFromAddress(addr + size - 1)
	if startPage != endPage {
		return false
	}
	pte, ok := as.LookupPTE(startPage)
	if !ok {
		return false
	}
	return pte.HasFlags(vmm.FlagUser | vmm.FlagWritable | vmm.FlagPresent)
}

// writeUTrapframe copies utf into as's backing memory at addr, through the
// mapped frame's physical address, the same way syscall.userBytes reads
// user memory.
func writeUTrapframe(as *vmm.AddressSpace, addr uintptr, utf *trapframe.UTrapframe) {
	pte, _ := as.LookupPTE(mm.PageFromAddress(addr))
	pageOff := addr - mm.PageFromAddress(addr).Address()
	dst := pte.Frame.Address() + pageOff
	kernel.Memcopy(uintptr(unsafe.Pointer(utf)), dst, utfSize)
}
