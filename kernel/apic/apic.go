// Package apic defines the narrow interface the trap dispatcher needs from
// the local APIC: acknowledging a hardware interrupt so the controller will
// deliver the next one. Programming the APIC itself (base address, timer
// divisor, LVT entries) is an external, boot-time concern outside this
// core's scope.
package apic

// EOI is implemented by a local APIC driver. SignalEOI must be called
// before returning from a hardware-interrupt vector, or the APIC will not
// deliver further interrupts of the same or lower priority.
type EOI interface {
	SignalEOI()
}

// Fake is a reference EOI implementation for tests: it just counts calls.
type Fake struct {
	Signalled int
}

// SignalEOI records that end-of-interrupt was signalled.
func (f *Fake) SignalEOI() {
	f.Signalled++
}

var _ EOI = (*Fake)(nil)
