package idt

// TaskState is the IA-32 32-bit task-state segment layout. Only ESP0 and
// SS0 are ever written by this kernel, which uses the TSS
// purely as a vehicle for the privilege-level-0 stack switch on a trap
// from user mode; the remaining fields exist so the struct's size matches
// what the hardware expects when the descriptor built from it is loaded
// with LTR.
type TaskState struct {
	Link   uint32
	ESP0   uint32
	SS0    uint16
	_      uint16
	ESP1   uint32
	SS1    uint16
	_      uint16
	ESP2   uint32
	SS2    uint16
	_      uint16
	CR3    uint32
	EIP    uint32
	EFlags uint32
	EAX    uint32
	ECX    uint32
	EDX    uint32
	EBX    uint32
	ESP    uint32
	EBP    uint32
	ESI    uint32
	EDI    uint32
	ES     uint16
	_      uint16
	CS     uint16
	_      uint16
	SS     uint16
	_      uint16
	DS     uint16
	_      uint16
	FS     uint16
	_      uint16
	GS     uint16
	_      uint16
	LDT    uint16
	_      uint16
	T      uint16
	IOMB   uint16
}
