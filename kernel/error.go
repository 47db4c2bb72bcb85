package kernel

// Error describes a failure raised by one of this kernel's collaborators —
// env.ErrBadEnv, pgfault's "no upcall registered", and the rest of the
// package-level sentinels the trap dispatcher and syscall surface check
// against with ==. All of them are defined as global variables that are
// pointers to this structure, never allocated fresh at the failure site:
// the Go allocator is not available to code that runs before Boot finishes,
// so errors.New is not an option there.
type Error struct {
	// Module names the collaborator the error originated in (env, pgfault,
	// syscall, ...), the same string kfmt.Panic prints ahead of Message.
	Module string

	// Message is the human-readable description kfmt.Panic and
	// pgfault.FaultMessage print.
	Message string
}

// Error implements the error interface, so a *kernel.Error can be compared
// with == by callers like env.Store.Get while still satisfying any
// interface that expects a plain error.
func (e *Error) Error() string {
	return e.Message
}
