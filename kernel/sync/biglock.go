// Package sync provides the process-wide BigKernelLock together with the
// busy-wait Spinlock primitive it is built from. This is a direct
// generalization of gopheros' kernel/sync/spinlock.go: the same
// compare-and-swap busy loop, with an owner-CPU field added so that the
// "no two CPUs hold the lock simultaneously" invariant (spec.md §8) is
// mechanically checkable from a test instead of only being true by
// construction.
package sync

import "sync/atomic"

var (
	// yieldFn is substituted by tests to avoid deadlocking a busy-wait
	// loop against a single GOMAXPROCS=1 test runner.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// until the lock becomes available. Re-acquiring a lock already held by the
// current caller deadlocks, exactly as on real hardware.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock, returning true on success.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock. Calling Release while the lock is free
// has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// noOwner marks the BigKernelLock as currently unheld.
const noOwner = -1

// BigKernelLock is the single, process-wide mutex described in spec.md §5:
// exactly one CPU executes kernel code at a time, acquired on the
// HALTED->STARTED transition and on any entry from user mode, and released
// only inside the scheduler immediately before it returns a CPU to user
// mode.
type BigKernelLock struct {
	lock  Spinlock
	owner int32
}

// NewBigKernelLock returns an unheld lock.
func NewBigKernelLock() *BigKernelLock {
	return &BigKernelLock{owner: noOwner}
}

// Acquire blocks until the lock is held by cpuID. Acquiring a lock this CPU
// already holds deadlocks, matching the spinlock it is built from.
func (k *BigKernelLock) Acquire(cpuID int32) {
	k.lock.Acquire()
	atomic.StoreInt32(&k.owner, cpuID)
}

// Release relinquishes the lock. It is only ever called from inside the
// scheduler, immediately before returning the owning CPU to user mode.
func (k *BigKernelLock) Release() {
	atomic.StoreInt32(&k.owner, noOwner)
	k.lock.Release()
}

// HeldBy reports whether cpuID currently holds the lock. Used by tests that
// check the "no two CPUs hold the lock simultaneously" invariant.
func (k *BigKernelLock) HeldBy(cpuID int32) bool {
	return atomic.LoadInt32(&k.owner) == cpuID
}

// Held reports whether any CPU currently holds the lock.
func (k *BigKernelLock) Held() bool {
	return atomic.LoadInt32(&k.owner) != noOwner
}
