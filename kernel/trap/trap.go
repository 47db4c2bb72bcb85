// Package trap wires the hardware entry stubs (entry_386.s) to the trap
// dispatcher spec.md §4.B describes: the per-CPU HALTED/STARTED and
// user-mode lock-acquisition protocol, the DYING reaper, and the routing
// table handing each vector to its collaborator. It is grounded on the
// original kernel's trap_dispatch/trap functions, restructured around the
// same PerCPU/BigKernelLock/EnvStore collaborators the sibling packages
// define, in place of trap.c's global curenv/lock statics.
package trap

import (
	"ringzero/kernel/apic"
	"ringzero/kernel/console"
	"ringzero/kernel/env"
	"ringzero/kernel/idt"
	"ringzero/kernel/kfmt"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/pmm"
	"ringzero/kernel/pgfault"
	"ringzero/kernel/sched"
	"ringzero/kernel/sync"
	"ringzero/kernel/syscall"
	"ringzero/kernel/trapframe"
	"unsafe"
)

// Vector aliases kept local to this package's routing table, so the switch
// below reads against the same names spec.md §4.B's table uses.
const (
	divide      = idt.Divide
	debug       = idt.Debug
	breakpoint  = idt.Breakpoint
	overflow    = idt.Overflow
	bound       = idt.Bound
	invalidOp   = idt.InvalidOp
	deviceNA    = idt.DeviceNA
	doubleFault = idt.DoubleFault
	invalidTSS  = idt.InvalidTSS
	segmentNP   = idt.SegmentNP
	stack       = idt.Stack
	gpFault     = idt.GPFault
	pageFault   = idt.PageFault
	fpError     = idt.FPError
	irqTimer    = idt.IRQTimer
	irqKeyboard = idt.IRQKeyboard
	irqSpurious = idt.IRQSpurious
	syscallVec  = idt.Syscall
)

// Dispatcher owns every collaborator the routing table in spec.md §4.B
// needs and implements the entry protocol from spec.md §4.B's first
// paragraph. A single Dispatcher is installed with Install before
// interrupts are ever enabled; entry_386.s's alltraps tail calls into it
// indirectly through trapEntry.
type Dispatcher struct {
	CPUs   [mm.NCPU]*idt.PerCPU
	Lock   *sync.BigKernelLock
	Envs   *env.Store
	Frames *pmm.Allocator
	Sched  *sched.Scheduler

	Syscalls *syscall.Kernel
	PgFault  pgfault.Handler
	Console  console.Console
	EOI      apic.EOI

	// Monitor is invoked for Breakpoint and Debug, standing in for the
	// external interactive kernel monitor (spec.md §4.B, "external").
	Monitor func(tf *trapframe.Trapframe)

	// ReadFaultAddress reads the MMU's faulting-address register (CR2).
	// Defaults to cpu.ReadFaultAddress in production; overridden by tests.
	ReadFaultAddress func() uint32
}

// panicFn is substituted by tests: kfmt.Panic halts the CPU and never
// returns, which a hosted test run cannot exercise directly.
var panicFn = kfmt.Panic

var active *Dispatcher

// Install registers d as the target of every subsequent hardware trap.
// Called once, during boot, before interrupts are enabled on any CPU.
func Install(d *Dispatcher) { active = d }

// cpuIndex identifies which CPU a trap frame belongs to by locating which
// per-CPU kernel-stack range its address falls within (spec.md §4.C's
// per-CPU stack layout), since this reference kernel keeps no other
// per-CPU-addressable state.
func cpuIndex(tf *trapframe.Trapframe) int {
	esp := uintptr(unsafe.Pointer(tf))
	for i := 0; i < mm.NCPU; i++ {
		if idt.WithinKernelStack(i, esp) {
			return i
		}
	}
	return 0
}

// trapEntry is called by entry_386.s's alltraps tail with a pointer to the
// trap frame it just built on the current kernel stack. It never returns to
// its Go caller in the ordinary sense: alltraps always resumes through
// IRETL using whatever frame Handle leaves current.
func trapEntry(sp uintptr) {
	if active == nil {
		return
	}
	tf := (*trapframe.Trapframe)(unsafe.Pointer(sp))
	active.Handle(cpuIndex(tf), tf)
}

// Handle implements spec.md §4.B end to end: the HALTED/STARTED and
// user-mode lock protocol, DYING reaping, routing, and the post-dispatch
// resume-or-yield decision.
func (d *Dispatcher) Handle(cpuID int, tf *trapframe.Trapframe) {
	cpu := d.CPUs[cpuID]

	locked := false
	if cpu.Status == idt.Halted {
		cpu.Status = idt.Started
		d.Lock.Acquire(int32(cpuID))
		locked = true
	}
	if !locked && tf.FromUserMode() {
		d.Lock.Acquire(int32(cpuID))
	}

	var current *env.Environment
	if tf.FromUserMode() {
		id := env.ID(cpu.CurrentEnv)
		e, err := d.Envs.Get(id, id, false)
		if err != nil {
			panicFn("trap: user-mode entry with no current environment")
			return
		}
		current = e

		if current.Status == env.Dying {
			d.Envs.Destroy(current, d.Frames)
			cpu.CurrentEnv = idt.NoEnv
			d.Sched.Yield()
			return
		}

		current.TF = *tf
		tf = &current.TF
	} else if cpu.CurrentEnv != idt.NoEnv {
		current, _ = d.Envs.Get(env.ID(cpu.CurrentEnv), env.ID(cpu.CurrentEnv), false)
	}

	d.route(cpuID, current, tf)

	// A handful of routes (timer preemption, sys_yield, a blocking
	// ipc_recv) already hand off to the scheduler themselves, which
	// releases the lock. Only decide what runs next here if that hasn't
	// already happened, or this would pick (and release) twice.
	if !d.Lock.HeldBy(int32(cpuID)) {
		return
	}

	// Re-resolve from the CPU's own record rather than trust the current
	// pointer captured before route ran: route may have destroyed it (an
	// unhandled fault or an unknown vector), in which case Get now fails
	// and this correctly falls through to Yield instead of resuming a
	// freed environment.
	if id := env.ID(cpu.CurrentEnv); id != idt.NoEnv {
		if e, err := d.Envs.Get(id, id, false); err == nil && e.Status == env.Running {
			d.Sched.Resume(e)
			return
		}
	}
	d.Sched.Yield()
}

// route implements spec.md §4.B's routing table.
func (d *Dispatcher) route(cpuID int, current *env.Environment, tf *trapframe.Trapframe) {
	switch uint8(tf.TrapNo) {
	case pageFault:
		var faultVA uint32
		if d.ReadFaultAddress != nil {
			faultVA = d.ReadFaultAddress()
		}
		d.handlePageFault(cpuID, current, tf, uintptr(faultVA))

	case breakpoint, debug:
		if d.Monitor != nil {
			d.Monitor(tf)
		}

	case syscallVec:
		// Register convention: EAX carries the syscall number, EDX/ECX/EBX/
		// EDI/ESI carry a1..a5, and the return value comes back in EAX. No
		// user-mode stub exists yet in this tree to cross-check against; this
		// is this dispatcher's own fixed contract (see DESIGN.md).
		if current == nil {
			return
		}
		r := d.Syscalls.Dispatch(current.ID, tf.Regs.EAX, tf.Regs.EDX, tf.Regs.ECX, tf.Regs.EBX, tf.Regs.EDI, tf.Regs.ESI)
		tf.Regs.EAX = uint32(r)

	case irqTimer:
		if d.EOI != nil {
			d.EOI.SignalEOI()
		}
		d.Sched.Yield()

	case irqSpurious:
		kfmt.Printf("trap: spurious interrupt on CPU %d\n", cpuID)

	case irqKeyboard:
		if d.EOI != nil {
			d.EOI.SignalEOI()
		}
		d.handleKeyboard()

	default:
		if !tf.FromUserMode() {
			d.fatal(cpuID, tf)
			return
		}
		kfmt.Printf("Unexpected trap %d from user space\n", tf.TrapNo)
		if current != nil {
			d.Envs.Destroy(current, d.Frames)
			d.CPUs[cpuID].CurrentEnv = idt.NoEnv
		}
	}
}

// handlePageFault implements spec.md §4.E, delegating the upcall-landing
// mechanics to package pgfault and handling only what's specific to a
// dispatcher: the kernel-mode-fault panic, the two destroy paths and their
// diagnostics.
func (d *Dispatcher) handlePageFault(cpuID int, current *env.Environment, tf *trapframe.Trapframe, faultVA uintptr) {
	if !tf.FromUserMode() {
		panicFn("page fault in kernel mode")
		return
	}
	if current == nil {
		return
	}

	noUpcall, err := d.PgFault.Reflect(current, faultVA, tf)
	if err == nil {
		return
	}
	if noUpcall {
		pgfault.FaultMessage(current, faultVA, tf.EIP)
	}
	tf.DumpTo(kfmt.Sink(), idt.VectorName)
	d.Envs.Destroy(current, d.Frames)
	d.CPUs[cpuID].CurrentEnv = idt.NoEnv
}

// handleKeyboard stands in for the console keyboard-interrupt handler
// (spec.md §4.B); the reference Console has no scancode source to drain
// here, since that translation is an external, boot-time collaborator.
func (d *Dispatcher) handleKeyboard() {}

// fatal implements spec.md's supplemented "anything else from kernel mode"
// action: halt with a full register and frame dump, tagged with the CPU
// that took the trap. The tag is built the way gopheros' hal.go tags each
// driver-probe line: a small io.Writer accumulates the formatted prefix,
// then a kfmt.PrefixWriter injects it at the start of every dumped line.
// cpuPrefixBuf is a fixed array rather than a bytes.Buffer since this path
// can run before the heap is safe to use.
func (d *Dispatcher) fatal(cpuID int, tf *trapframe.Trapframe) {
	var pb cpuPrefixBuf
	kfmt.Fprintf(&pb, "[cpu%d] ", cpuID)
	w := &kfmt.PrefixWriter{Sink: kfmt.Sink(), Prefix: pb.buf[:pb.n]}

	kfmt.Fprintf(w, "*** fatal trap in kernel mode ***\n")
	tf.DumpTo(w, idt.VectorName)
	panicFn("unhandled kernel-mode trap")
}

// cpuPrefixBuf is a stack-resident io.Writer sink just large enough to hold
// "[cpuN] " for any CPU index this kernel supports.
type cpuPrefixBuf struct {
	buf [16]byte
	n   int
}

func (b *cpuPrefixBuf) Write(p []byte) (int, error) {
	n := copy(b.buf[b.n:], p)
	b.n += n
	return n, nil
}
