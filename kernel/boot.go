package kernel

import (
	"ringzero/kernel/apic"
	"ringzero/kernel/console"
	"ringzero/kernel/cpu"
	"ringzero/kernel/env"
	"ringzero/kernel/idt"
	"ringzero/kernel/kfmt"
	"ringzero/kernel/mm/pmm"
	"ringzero/kernel/pgfault"
	"ringzero/kernel/sched"
	"ringzero/kernel/sync"
	"ringzero/kernel/syscall"
	"ringzero/kernel/trap"
)

// Config bounds the two resources fixed at boot time: how many physical
// frames the allocator manages and how many environments the store admits.
// Both are compile-time constants on real hardware (spec.md treats bootstrap
// memory detection as an external concern), so Kmain takes them as plain
// arguments rather than reading them from any discovered configuration.
type Config struct {
	FrameCount int
	EnvCap     int
	EOI        apic.EOI
}

// Kmain wires every collaborator spec.md §2-§9 names into one Dispatcher and
// installs it, mirroring gopheros' kernel.Kmain: the only Go symbol the boot
// assembly calls into, expected never to return. Unlike gopheros' terminal
// bring-up, there is no video mode to program here (an external concern);
// what Kmain owns is the trap core itself.
//
// Kmain does not start user environments; after installing the Dispatcher it
// only spins in an empty loop. Creating the first environment from a loaded
// program image is bootstrap policy this core deliberately leaves external
// (see DESIGN.md, env_create Non-goal).
// Callers that need a running system call Boot, then Alloc their own first
// environment through the returned Dispatcher's collaborators, then drive
// CPU 0 into Handle via a real or simulated trap.
func Kmain(cfg Config) {
	d := Boot(cfg)
	trap.Install(d)
	kfmt.Printf("ringzero: kernel core ready, %d frame(s), %d environment slot(s)\n",
		cfg.FrameCount, cfg.EnvCap)

	for {
	}
}

// Boot builds every collaborator a Dispatcher needs and returns it without
// installing it or entering the idle loop, so tests and alternate front
// ends (e.g. a simulator driving Handle directly) can wire their own Run
// function onto the returned Scheduler before anything runs.
func Boot(cfg Config) *trap.Dispatcher {
	frames := pmm.New(cfg.FrameCount, func(addr, size uintptr) { Memset(addr, 0, size) })
	envs := env.NewStore(cfg.EnvCap)
	lock := sync.NewBigKernelLock()
	cpus := idt.NewPerCPUs()

	bringup := idt.NewBringup(trap.Stubs())
	for i := range cpus {
		if err := bringup.InitCPU(cpus, i); err != nil {
			panicFn(err.Error())
			return nil
		}
	}

	sc := &sched.Scheduler{Store: envs, Lock: lock, CPU: cpus[0], CPUID: 0}
	con := &console.Ring{}

	// Anything kfmt.Printf accumulated in its ring buffer before this
	// point (bringup failures reported through panicFn, for instance) is
	// drained into con now, the same order-preserving handoff gopheros'
	// hal.go performs once its active TTY is chosen.
	kfmt.SetOutputSink(con)

	d := &trap.Dispatcher{
		CPUs:   cpus,
		Lock:   lock,
		Envs:   envs,
		Frames: frames,
		Sched:  sc,
		Syscalls: &syscall.Kernel{
			Envs:    envs,
			Frames:  frames,
			Console: con,
			Sched:   sc,
		},
		PgFault:          pgfault.Handler{},
		Console:          con,
		EOI:              cfg.EOI,
		ReadFaultAddress: cpu.ReadFaultAddress,
	}
	return d
}

// panicFn is substituted by tests, mirroring the same seam kernel/trap and
// kernel/kfmt already expose for a halt that never returns on real hardware.
var panicFn = kfmt.Panic
