package syscall

import (
	"ringzero/kernel/console"
	"ringzero/kernel/env"
	"ringzero/kernel/idt"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/pmm"
	"ringzero/kernel/mm/vmm"
	"ringzero/kernel/sched"
	"ringzero/kernel/trapframe"
	"unsafe"
)

// Number identifies a system call, carried in the call-number register
// (the accumulator) on entry (spec.md §6).
type Number uint32

const (
	Cputs Number = iota
	Cgetc
	GetEnvID
	EnvDestroy
	Yield
	ExoFork
	EnvSetStatus
	EnvSetTrapframe
	EnvSetPgFaultUpcall
	PageAlloc
	PageMap
	PageUnmap
	IPCTrySend
	IPCRecv
)

// Wire values for the status argument to env_set_status. These equal the
// env package's internal Status constants; the equality is deliberate
// (the same convention the original kernel uses, where ENV_RUNNABLE is
// both the wire ABI value and the internal enum), and holds by construction
// since both constants below are defined from env's Status values.
const (
	StatusRunnable    = uint32(env.Runnable)
	StatusNotRunnable = uint32(env.NotRunnable)
)

// Kernel bundles the collaborators the system-call surface needs: the
// environment table, the physical-frame allocator, the console, and the
// scheduler. It is the single receiver Dispatch is called on.
type Kernel struct {
	Envs    *env.Store
	Frames  *pmm.Allocator
	Console console.Console
	Sched   *sched.Scheduler
}

// Dispatch routes a system call from caller, keyed on num, with up to five
// further argument registers. The result is the value to place in the
// caller's saved accumulator: non-negative on success, one of the ErrCode
// values on failure (spec.md §6).
func (k *Kernel) Dispatch(caller env.ID, num uint32, a1, a2, a3, a4, a5 uint32) int32 {
	switch Number(num) {
	case Cputs:
		c, err := k.Envs.Get(caller, caller, false)
		if err != nil {
			return int32(BadEnv)
		}
		return k.cputs(c, uintptr(a1), a2)
	case Cgetc:
		return k.cgetc()
	case GetEnvID:
		return int32(caller)
	case EnvDestroy:
		return k.envDestroy(caller, env.ID(a1))
	case Yield:
		if k.Sched != nil {
			k.Sched.Yield()
		}
		return 0
	case ExoFork:
		return k.exofork(caller)
	case EnvSetStatus:
		return k.envSetStatus(caller, env.ID(a1), a2)
	case EnvSetTrapframe:
		return k.envSetTrapframe(caller, env.ID(a1), uintptr(a2))
	case EnvSetPgFaultUpcall:
		return k.envSetPgFaultUpcall(caller, env.ID(a1), uintptr(a2))
	case PageAlloc:
		return k.pageAlloc(caller, env.ID(a1), uintptr(a2), a3)
	case PageMap:
		return k.pageMap(caller, env.ID(a1), uintptr(a2), env.ID(a3), uintptr(a4), a5)
	case PageUnmap:
		return k.pageUnmap(caller, env.ID(a1), uintptr(a2))
	case IPCTrySend:
		return k.ipcTrySend(caller, env.ID(a1), a2, uintptr(a3), a4)
	case IPCRecv:
		return k.ipcRecv(caller, uintptr(a1))
	default:
		return int32(NoSys)
	}
}

// installFresh installs a newly allocated frame (whose reference count is
// already 1, from Frames.Alloc) at page, releasing whatever was mapped
// there before it.
func (k *Kernel) installFresh(as *vmm.AddressSpace, frame mm.Frame, page mm.Page, flags vmm.PTEFlag) {
	if old, ok := as.Remove(page); ok {
		k.Frames.DecRef(old)
	}
	as.Insert(page, frame, flags)
}

// installShared installs an already-referenced frame at page, possibly in
// a different address space than the one that currently owns it
// (page_map, IPC page transfer), incrementing its reference count and
// releasing whatever was mapped at page before.
func (k *Kernel) installShared(as *vmm.AddressSpace, frame mm.Frame, page mm.Page, flags vmm.PTEFlag) {
	if old, ok := as.Remove(page); ok {
		k.Frames.DecRef(old)
	}
	k.Frames.IncRef(frame)
	as.Insert(page, frame, flags)
}

func (k *Kernel) cputs(caller *env.Environment, buf uintptr, length uint32) int32 {
	data, ok := userBytes(caller.AS, buf, length, vmm.FlagUser|vmm.FlagPresent)
	if !ok {
		return int32(Inval)
	}
	if k.Console != nil {
		k.Console.Write(data)
	}
	return 0
}

func (k *Kernel) cgetc() int32 {
	if k.Console == nil {
		return 0
	}
	b, ok := k.Console.ReadByte()
	if !ok {
		return 0
	}
	return int32(b)
}

func (k *Kernel) envDestroy(caller, target env.ID) int32 {
	e, err := k.Envs.Get(caller, target, true)
	if err != nil {
		return int32(BadEnv)
	}
	k.Envs.Destroy(e, k.Frames)
	return 0
}

func (k *Kernel) exofork(callerID env.ID) int32 {
	caller, err := k.Envs.Get(callerID, callerID, false)
	if err != nil {
		return int32(BadEnv)
	}

	pdFrame, aerr := k.Frames.Alloc(true)
	if aerr != nil {
		return int32(NoMem)
	}
	childAS := vmm.New(pdFrame)

	child, err := k.Envs.Alloc(callerID, childAS)
	if err != nil {
		k.Frames.DecRef(pdFrame)
		return int32(NoFreeEnv)
	}

	child.TF = caller.TF
	child.TF.Regs.EAX = 0
	child.Status = env.NotRunnable

	return int32(child.ID)
}

func (k *Kernel) envSetStatus(caller, target env.ID, status uint32) int32 {
	e, err := k.Envs.Get(caller, target, true)
	if err != nil {
		return int32(BadEnv)
	}
	switch status {
	case StatusRunnable:
		e.Status = env.Runnable
	case StatusNotRunnable:
		e.Status = env.NotRunnable
	default:
		return int32(Inval)
	}
	return 0
}

func (k *Kernel) envSetTrapframe(callerID, target env.ID, framePtr uintptr) int32 {
	e, err := k.Envs.Get(callerID, target, true)
	if err != nil {
		return int32(BadEnv)
	}

	// The source frame is validated against the target's own address
	// space, not the caller's: spec.md §4.D requires the frame to be
	// readable with user permission in e's address space.
	size := uint32(unsafe.Sizeof(trapframe.Trapframe{}))
	data, ok := userBytes(e.AS, framePtr, size, vmm.FlagUser|vmm.FlagPresent)
	if !ok {
		return int32(Inval)
	}

	var tf trapframe.Trapframe
	copy((*[1 << 20]byte)(unsafe.Pointer(&tf))[:size:size], data)

	// Non-negotiable safety clamps (spec.md §4.D): user environments
	// always run at CPL 3 with interrupts enabled and IOPL 0, regardless
	// of what the caller supplied.
	tf.DS = idt.UserDataSelector
	tf.ES = idt.UserDataSelector
	tf.SS = idt.UserDataSelector
	tf.CS = idt.UserCodeSelector
	tf.EFlags |= trapframe.FlagInterruptEnable
	tf.EFlags &^= trapframe.FlagIOPLMask

	e.TF = tf
	return 0
}

func (k *Kernel) envSetPgFaultUpcall(caller, target env.ID, fn uintptr) int32 {
	e, err := k.Envs.Get(caller, target, true)
	if err != nil {
		return int32(BadEnv)
	}
	e.PgFaultUpcall = fn
	return 0
}

func (k *Kernel) pageAlloc(caller, target env.ID, va uintptr, perm uint32) int32 {
	e, err := k.Envs.Get(caller, target, true)
	if err != nil {
		return int32(BadEnv)
	}
	if !validVA(va) || !validPerm(perm) {
		return int32(Inval)
	}

	frame, aerr := k.Frames.Alloc(true)
	if aerr != nil {
		return int32(NoMem)
	}

	k.installFresh(e.AS, frame, mm.PageFromAddress(va), vmm.PTEFlag(perm))
	return 0
}

func (k *Kernel) pageMap(callerID, srcID env.ID, srcVA uintptr, dstID env.ID, dstVA uintptr, perm uint32) int32 {
	src, err := k.Envs.Get(callerID, srcID, true)
	if err != nil {
		return int32(BadEnv)
	}
	dst, err := k.Envs.Get(callerID, dstID, true)
	if err != nil {
		return int32(BadEnv)
	}
	if !validVA(srcVA) || !validVA(dstVA) || !validPerm(perm) {
		return int32(Inval)
	}

	pte, ok := src.AS.LookupPTE(mm.PageFromAddress(srcVA))
	if !ok {
		return int32(Inval)
	}
	if vmm.PTEFlag(perm)&vmm.FlagWritable != 0 && pte.Flags&vmm.FlagWritable == 0 {
		return int32(Inval)
	}

	k.installShared(dst.AS, pte.Frame, mm.PageFromAddress(dstVA), vmm.PTEFlag(perm))
	return 0
}

func (k *Kernel) pageUnmap(caller, target env.ID, va uintptr) int32 {
	e, err := k.Envs.Get(caller, target, true)
	if err != nil {
		return int32(BadEnv)
	}
	if !validVA(va) {
		return int32(Inval)
	}
	if frame, ok := e.AS.Remove(mm.PageFromAddress(va)); ok {
		k.Frames.DecRef(frame)
	}
	return 0
}

func (k *Kernel) ipcTrySend(callerID, dstID env.ID, value uint32, srcVA uintptr, perm uint32) int32 {
	dst, err := k.Envs.Get(callerID, dstID, false)
	if err != nil {
		return int32(BadEnv)
	}
	if !dst.Recving {
		return int32(IPCNotRecv)
	}

	var transferredPerm uint32
	if dst.RecvVA < mm.UTOP && srcVA < mm.UTOP {
		if !mm.PageAligned(srcVA) || !validPerm(perm) {
			return int32(Inval)
		}
		caller, err := k.Envs.Get(callerID, callerID, false)
		if err != nil {
			return int32(BadEnv)
		}
		pte, ok := caller.AS.LookupPTE(mm.PageFromAddress(srcVA))
		if !ok {
			return int32(Inval)
		}
		// Resolved per spec.md §9's open question: the intended check is
		// that a write is requested but the source mapping is not
		// writable, i.e. (*pte & PTE_W) == 0, not the always-true
		// (*pte | PTE_W) the original expression used.
		if vmm.PTEFlag(perm)&vmm.FlagWritable != 0 && pte.Flags&vmm.FlagWritable == 0 {
			return int32(Inval)
		}
		k.installShared(dst.AS, pte.Frame, mm.PageFromAddress(dst.RecvVA), vmm.PTEFlag(perm))
		transferredPerm = perm
	}

	dst.Recving = false
	dst.IPCFrom = callerID
	dst.IPCValue = value
	dst.IPCPerm = transferredPerm
	dst.Status = env.Runnable
	dst.TF.Regs.EAX = 0

	return 0
}

func (k *Kernel) ipcRecv(callerID env.ID, dstVA uintptr) int32 {
	caller, err := k.Envs.Get(callerID, callerID, false)
	if err != nil {
		return int32(BadEnv)
	}
	if dstVA < mm.UTOP && !mm.PageAligned(dstVA) {
		return int32(Inval)
	}

	caller.Recving = true
	caller.RecvVA = dstVA
	caller.Status = env.NotRunnable

	if k.Sched != nil {
		k.Sched.Yield()
	}
	return 0
}
