package idt

import (
	"ringzero/kernel"
	"ringzero/kernel/cpu"
	"ringzero/kernel/mm"
	"unsafe"
)

// CPUStatus is a Per-CPU record's status (spec.md §3).
type CPUStatus uint8

const (
	Halted CPUStatus = iota
	Started
)

// NoEnv marks a Per-CPU record as currently running no environment.
const NoEnv = int32(-1)

// PerCPU is the processor-local record spec.md §3 describes: the
// task-state area, the identity of the currently running environment, and
// this CPU's status.
type PerCPU struct {
	TSS        TaskState
	CurrentEnv int32
	Status     CPUStatus
}

// NewPerCPUs allocates mm.NCPU Per-CPU records, each starting HALTED with
// no current environment.
func NewPerCPUs() [mm.NCPU]*PerCPU {
	var cpus [mm.NCPU]*PerCPU
	for i := range cpus {
		cpus[i] = &PerCPU{CurrentEnv: NoEnv}
	}
	return cpus
}

// KernelStackTop returns the top virtual address of CPU i's dedicated
// kernel-stack slot: KSTACKTOP - i*(KSTKSIZE+KSTKGAP), descending from the
// top of the per-CPU kernel-stack area with each stack followed by an
// unmapped KSTKGAP guard (spec.md §4.C, §6).
func KernelStackTop(i int) uintptr {
	return mm.KSTACKTOP - uintptr(i)*(mm.KSTKSIZE+mm.KSTKGAP)
}

// WithinKernelStack reports whether esp lies strictly within CPU i's
// dedicated kernel-stack range, the invariant spec.md §8 requires of every
// reachable kernel state.
func WithinKernelStack(i int, esp uintptr) bool {
	top := KernelStackTop(i)
	bottom := top - mm.KSTKSIZE
	return esp > bottom && esp <= top
}

var errDoubleTSSLoad = &kernel.Error{Module: "idt", Message: "task-state descriptor already bound to another CPU"}

var (
	loadGDTFn = cpu.LoadGDT
	loadTRFn  = cpu.LoadTaskRegister
	loadIDTFn = cpu.LoadIDT
)

// Bringup owns the shared IDT and GDT and performs the one-time-per-CPU
// steps of spec.md §4.C. The IDT is built once, by whichever CPU calls
// Init first; InitCPU is then called once per processor during its
// bring-up.
type Bringup struct {
	GDT    *GDT
	Table  *Table
	loaded [mm.NCPU]bool
}

// NewBringup builds the shared IDT from stubs (vector -> entry-stub
// address) and an empty GDT, ready for per-CPU InitCPU calls.
func NewBringup(stubs map[uint8]uintptr) *Bringup {
	return &Bringup{
		GDT:   NewGDT(),
		Table: BuildTable(stubs, KernCodeSelector),
	}
}

// InitCPU performs spec.md §4.C's five per-CPU steps for CPU i: point its
// TSS at its dedicated kernel stack, install the TSS descriptor into the
// i-th GDT slot, load the task register, and load the IDT register.
// Loading the same task-state descriptor on two CPUs is a fatal
// configuration error that manifests as a triple fault on real hardware;
// here it is caught before it reaches LTR and reported as an error rather
// than corrupting the machine, consistent with spec.md §7's preference for
// signalled errors over implicit control transfers.
func (b *Bringup) InitCPU(cpus [mm.NCPU]*PerCPU, i int) *kernel.Error {
	if i < 0 || i >= mm.NCPU {
		return errDoubleTSSLoad
	}
	if b.loaded[i] {
		return errDoubleTSSLoad
	}
	b.loaded[i] = true

	c := cpus[i]
	c.TSS.ESP0 = uint32(KernelStackTop(i))
	c.TSS.SS0 = KernDataSelector

	b.GDT.InstallTSS(i, uintptr(unsafe.Pointer(&c.TSS)), uint32(unsafe.Sizeof(c.TSS)))

	gdtBase, gdtLimit := b.GDT.Base()
	loadGDTFn(uint32(gdtBase), gdtLimit)
	loadTRFn(TSSSelector(i))

	idtBase, idtLimit := b.Table.Base()
	loadIDTFn(uint32(idtBase), idtLimit)

	return nil
}
