// Package sched implements the Scheduler collaborator: round-robin
// selection of a runnable environment plus the mechanics of releasing the
// big kernel lock immediately before handing control back to user mode
// (spec.md §5's lock-acquisition/release points). It is grounded on the
// teacher's per-CPU record idiom (kernel/cpu, generalized here to a small
// process table scan); pure round-robin selection has no natural
// third-party library home, so this component is built on the standard
// library only (recorded in DESIGN.md).
package sched

import (
	"ringzero/kernel/env"
	"ringzero/kernel/idt"
	"ringzero/kernel/sync"
)

// RunFunc hands control to e. On real hardware this loads e's saved trap
// frame and IRETs to user mode and never returns; the reference
// implementation here treats a RunFunc that returns as "resumed", letting
// tests observe what was scheduled without a real privilege transition.
type RunFunc func(e *env.Environment)

// Scheduler round-robins over Store's environments, always resuming
// scanning just after the last environment it ran, and never selecting
// anything but a RUNNABLE environment (spec.md §5's "picks a runnable
// environment and invokes run").
type Scheduler struct {
	Store *env.Store
	Lock  *sync.BigKernelLock
	CPU   *idt.PerCPU
	CPUID int32

	// IdleFn is invoked when no environment is runnable. It should block
	// (e.g. HLT) until an interrupt makes progress possible; the
	// reference implementation leaves it optional so tests can omit it.
	IdleFn func()

	// Run hands control to the picked environment. Required for Yield to
	// do anything once it has found a candidate.
	Run RunFunc

	lastID env.ID
}

// PickNext returns the next RUNNABLE environment after the last one this
// Scheduler picked, wrapping around Store's allocation order, or nil if
// none is runnable.
func (s *Scheduler) PickNext() *env.Environment {
	envs := s.Store.Ordered()
	if len(envs) == 0 {
		return nil
	}

	start := 0
	for i, e := range envs {
		if e.ID > s.lastID {
			start = i
			break
		}
	}

	for i := 0; i < len(envs); i++ {
		e := envs[(start+i)%len(envs)]
		if e.Status == env.Runnable {
			return e
		}
	}
	return nil
}

// Resume hands control directly back to e without consulting PickNext,
// releasing the big kernel lock first. It is the trap dispatcher's
// counterpart to Yield for the common case where the environment that just
// trapped into the kernel is still RUNNING and gets the CPU back without a
// round-robin reschedule (spec.md §4.B, "if a current environment exists
// and is RUNNING, resume it").
func (s *Scheduler) Resume(e *env.Environment) {
	s.lastID = e.ID
	if s.CPU != nil {
		s.CPU.CurrentEnv = int32(e.ID)
	}
	s.Lock.Release()
	if s.Run != nil {
		s.Run(e)
	}
}

// Yield picks the next runnable environment, marks it RUNNING and current
// on this Scheduler's CPU, releases the big kernel lock, and invokes Run.
// Per spec.md §5, the lock is released inside the scheduler immediately
// before it returns the CPU to user mode: nothing after Lock.Release runs
// with the lock held.
func (s *Scheduler) Yield() {
	next := s.PickNext()
	if next == nil {
		s.Lock.Release()
		if s.IdleFn != nil {
			s.IdleFn()
		}
		return
	}

	next.Status = env.Running
	s.lastID = next.ID
	if s.CPU != nil {
		s.CPU.CurrentEnv = int32(next.ID)
	}

	s.Lock.Release()
	if s.Run != nil {
		s.Run(next)
	}
}
