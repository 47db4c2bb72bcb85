// Package syscall implements the system-call surface spec.md §4.D
// describes: the ~13 primitives user environments invoke to create
// environments, manipulate address-space mappings, register upcalls,
// yield and exchange messages. It is grounded on the original kernel's
// syscall.c dispatch table, translated from a raw register-number switch
// into a typed Number/Dispatch pair, with the same argument-validation and
// capability-check discipline (spec.md §9's weak parent-pointer model).
package syscall

// ErrCode is one of the stable, negative error-code integers spec.md §6
// names. The system-call result register carries the signed value
// directly: non-negative on success, one of these on failure.
type ErrCode int32

const (
	// BadEnv is returned when an environment identifier cannot be
	// resolved, or the caller lacks permission to act on it.
	BadEnv ErrCode = -1

	// Inval is returned for a malformed argument: misaligned or
	// out-of-range address, disallowed permission bits, a status value
	// that isn't RUNNABLE or NOT_RUNNABLE, and so on.
	Inval ErrCode = -2

	// NoMem is returned when a physical-frame allocation or an
	// environment's supporting structures could not be obtained.
	NoMem ErrCode = -3

	// NoFreeEnv is returned when exofork cannot allocate a new
	// environment slot.
	NoFreeEnv ErrCode = -4

	// IPCNotRecv is returned by ipc_try_send when the destination is not
	// currently blocked in ipc_recv.
	IPCNotRecv ErrCode = -5

	// NoSys is returned for an unrecognized call number.
	NoSys ErrCode = -6
)
