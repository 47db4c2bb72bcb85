// Package clock defines the narrow ClockTick interface: a source of tick
// counts. The trap dispatcher does not consult it; its timer vector signals
// EOI and yields without reading a tick count. Programming the actual timer
// hardware is an external, boot-time
// concern outside this core's scope, mirroring package apic's EOI split.
package clock

// Source is implemented by a clock-tick driver.
type Source interface {
	// Ticks returns the number of timer interrupts observed so far.
	Ticks() uint64
}

// Fake is a reference Source for tests: it just counts calls to Tick.
type Fake struct {
	count uint64
}

// Tick records one timer interrupt.
func (f *Fake) Tick() { f.count++ }

// Ticks returns the number of times Tick has been called.
func (f *Fake) Ticks() uint64 { return f.count }

var _ Source = (*Fake)(nil)
