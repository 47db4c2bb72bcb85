// Package env implements the EnvStore collaborator spec.md §2-3 describe:
// the table of environments, lookup by id with the caller-permission
// check, allocation and status transitions. It is grounded on the
// teacher's small fixed-shape-record-plus-status-byte idiom (e.g.
// kernel/mm/pmm's refcount/free-list pair): a narrow, dependency-free
// collaborator that exists so the trap/syscall/page-fault core in the
// sibling packages has something concrete to drive in tests.
package env

import (
	"ringzero/kernel"
	"ringzero/kernel/mm"
	"ringzero/kernel/mm/pmm"
	"ringzero/kernel/mm/vmm"
	"ringzero/kernel/trapframe"
)

// Status is one of an Environment's lifecycle states (spec.md §3).
type Status uint8

const (
	Free Status = iota
	Runnable
	NotRunnable
	Running
	Dying
)

// String renders a Status the way diagnostic dumps expect.
func (s Status) String() string {
	switch s {
	case Free:
		return "FREE"
	case Runnable:
		return "RUNNABLE"
	case NotRunnable:
		return "NOT_RUNNABLE"
	case Running:
		return "RUNNING"
	case Dying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// ID identifies an environment. Ids are never reused within a Store's
// lifetime, so a stale parent or IPC-sender reference left behind by Free
// always fails a later Get with BadEnv rather than silently resolving to a
// different, newer environment (spec.md §9's "non-cyclic environment
// graph").
type ID int32

// NoEnv marks the absence of an environment: an IPC sender before any send
// has arrived, or a Per-CPU record with nothing scheduled.
const NoEnv ID = -1

// Environment is a user-mode execution context (spec.md §3).
type Environment struct {
	ID       ID
	ParentID ID
	Status   Status

	TF trapframe.Trapframe
	AS *vmm.AddressSpace

	// PgFaultUpcall is the registered page-fault upcall entry point; zero
	// means absent.
	PgFaultUpcall uintptr

	// IPC mailbox fields (spec.md §3, §4.D).
	Recving  bool
	RecvVA   uintptr
	IPCFrom  ID
	IPCValue uint32
	IPCPerm  uint32
}

var (
	errNoFreeEnv = &kernel.Error{Module: "env", Message: "no free environment slots"}
	errBadEnv    = &kernel.Error{Module: "env", Message: "bad environment id"}
)

// ErrNoFreeEnv reports the error Alloc returns once Store is at capacity.
func ErrNoFreeEnv() *kernel.Error { return errNoFreeEnv }

// ErrBadEnv reports the error Get returns for an unresolvable id or a
// failed permission check.
func ErrBadEnv() *kernel.Error { return errBadEnv }

// Store is the EnvStore collaborator: a table of environments addressed by
// ID, with allocation bounded by capacity and lookup gated by spec.md
// §9's weak capability model (caller is the target, or the target's
// parent).
type Store struct {
	byID     map[ID]*Environment
	order    []ID
	nextID   ID
	capacity int
}

// NewStore creates an empty Store admitting at most capacity live
// environments at once.
func NewStore(capacity int) *Store {
	return &Store{
		byID:     make(map[ID]*Environment),
		nextID:   1,
		capacity: capacity,
	}
}

// Alloc creates a new environment, owned by parent, with the given address
// space, in NOT_RUNNABLE status (exofork's contract; see spec.md §4.D).
// Alloc is the only operation that creates a parent/child edge, so the
// parent/child graph the Store builds up is always a forest.
func (s *Store) Alloc(parent ID, as *vmm.AddressSpace) (*Environment, *kernel.Error) {
	if len(s.byID) >= s.capacity {
		return nil, errNoFreeEnv
	}
	e := &Environment{
		ID:       s.nextID,
		ParentID: parent,
		Status:   NotRunnable,
		AS:       as,
		IPCFrom:  NoEnv,
	}
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	s.nextID++
	return e, nil
}

// Get resolves id to its Environment. When checkPerm is true, the lookup
// additionally fails BadEnv unless caller is id itself or id's parent is
// caller — spec.md §9's intentionally weak capability model. ipc_try_send
// is the one syscall that resolves its target with checkPerm false.
func (s *Store) Get(caller, id ID, checkPerm bool) (*Environment, *kernel.Error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, errBadEnv
	}
	if checkPerm && id != caller && e.ParentID != caller {
		return nil, errBadEnv
	}
	return e, nil
}

// Free removes id from the store. It performs no permission check: by the
// time the reaper calls Free, the environment is already DYING and the
// permission check that could have refused the transition has already run.
func (s *Store) Free(id ID) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Destroy releases every physical frame mapped in e's address space plus the
// frame backing the address space's own page directory (exofork's pdFrame,
// which Walk never reaches since it is not a mapping the address space
// holds), decrementing frames' reference counts and letting any that reach
// zero return to the free list, then removes e from the store. This single
// implementation backs both the env_destroy syscall and the trap
// dispatcher's DYING reaper (spec.md §3, §4.B), since both need exactly
// the same teardown.
func (s *Store) Destroy(e *Environment, frames *pmm.Allocator) {
	if e.AS != nil {
		e.AS.Walk(func(_ mm.Page, pte vmm.PTE) bool {
			frames.DecRef(pte.Frame)
			return true
		})
		frames.DecRef(e.AS.PDTFrame())
	}
	s.Free(e.ID)
}

// Len reports how many environments currently exist.
func (s *Store) Len() int { return len(s.byID) }

// Ordered returns every live environment in allocation order, the shape
// the round-robin scheduler scans over.
func (s *Store) Ordered() []*Environment {
	out := make([]*Environment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
