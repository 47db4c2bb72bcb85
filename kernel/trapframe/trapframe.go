// Package trapframe defines the single record layout shared between the
// hand-written entry stubs in package trap and the trap dispatcher. Any
// deviation in field order, padding or size between what the stubs push and
// what this struct describes is a silent miscompile: it manifests as
// register corruption on the first system call, not a build error. See
// gopheros' kernel/gate and kernel/irq packages, whose Registers/Frame split
// this package reunifies into the single shared record the specification
// requires.
package trapframe

import (
	"io"

	"ringzero/kernel/kfmt"
)

// EFlags bits relevant to the trap-frame invariants.
const (
	FlagInterruptEnable = uint32(1 << 9)
	FlagIOPLMask         = uint32(3 << 12)
)

// CSUserMode is the value the low two bits of a code selector must have for
// a trap frame to have originated in user mode (RPL 3).
const CSUserMode = uint16(3)

// PushRegs mirrors the general-purpose register pushes performed by the
// common entry-stub tail, in push order. Oesp is the stack pointer value
// pushed by PUSHA and is never consulted; it exists purely so that POPA
// restores the other registers from the matching offsets.
type PushRegs struct {
	EDI  uint32
	ESI  uint32
	EBP  uint32
	Oesp uint32
	EBX  uint32
	EDX  uint32
	ECX  uint32
	EAX  uint32
}

// Trapframe captures the full CPU state at the moment of a kernel entry. Its
// layout is bit-identical to what the entry stubs in package trap push onto
// the stack: general-purpose registers, data/extra segment selectors, the
// trap number and error code pushed by the stub or by hardware, and the
// hardware-pushed return frame (EIP, CS, EFlags, and — only when the trap
// crossed a privilege boundary — ESP and SS).
type Trapframe struct {
	Regs PushRegs

	ES uint16
	_  uint16
	DS uint16
	_  uint16

	TrapNo  uint32
	ErrCode uint32

	EIP    uint32
	CS     uint16
	_      uint16
	EFlags uint32

	// ESP and SS are only meaningful (and only pushed by hardware) when
	// the trap crossed from user mode into kernel mode.
	ESP uint32
	SS  uint16
	_   uint16
}

// FromUserMode reports whether this frame was taken while executing in user
// mode, i.e. whether the saved code selector has RPL 3.
func (tf *Trapframe) FromUserMode() bool {
	return tf.CS&3 == CSUserMode
}

// DumpTo prints a labelled register and frame dump in the style restored
// from the original kernel's print_trapframe/print_regs, using name to
// resolve the trap number to a mnemonic (idt.VectorName fits this signature;
// nil is accepted and falls back to printing the bare number). Every line
// goes through w, the same way gopheros' gate.Registers.DumpTo(w io.Writer)
// takes its destination as a parameter instead of writing straight to
// kfmt's default sink: kernel/trap's fatal-trap handler passes a
// kfmt.PrefixWriter here so every dumped line carries the trapping CPU's tag.
func (tf *Trapframe) DumpTo(w io.Writer, name func(uint32) string) {
	if name != nil {
		kfmt.Fprintf(w, "TRAP frame:\n  trap 0x%x (%s)\n  err  0x%x\n", tf.TrapNo, name(tf.TrapNo), tf.ErrCode)
	} else {
		kfmt.Fprintf(w, "TRAP frame:\n  trap 0x%x\n  err  0x%x\n", tf.TrapNo, tf.ErrCode)
	}
	kfmt.Fprintf(w, "  eip  0x%x\n  cs   0x%x\n  flag 0x%x\n", tf.EIP, tf.CS, tf.EFlags)
	if tf.FromUserMode() {
		kfmt.Fprintf(w, "  esp  0x%x\n  ss   0x%x\n", tf.ESP, tf.SS)
	}
	kfmt.Fprintf(w, "  eax  0x%x  ebx 0x%x  ecx 0x%x  edx 0x%x\n", tf.Regs.EAX, tf.Regs.EBX, tf.Regs.ECX, tf.Regs.EDX)
	kfmt.Fprintf(w, "  esi  0x%x  edi 0x%x  ebp 0x%x\n", tf.Regs.ESI, tf.Regs.EDI, tf.Regs.EBP)
	kfmt.Fprintf(w, "  ds   0x%x  es  0x%x\n", tf.DS, tf.ES)
}

// UTrapframe is the smaller record the page-fault upcall delivers to user
// mode. Unlike Trapframe it is always delivered to a handler that is
// already running in user mode, so it carries no segment selectors: only
// what a user-mode recovery handler needs to resume execution.
type UTrapframe struct {
	FaultVA uint32
	ErrCode uint32
	Regs    PushRegs
	EIP     uint32
	EFlags  uint32
	ESP     uint32
}
