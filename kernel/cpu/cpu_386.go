// Package cpu provides low-level, architecture-specific primitives for the
// IA-32 protected-mode machine that ringzero targets: port I/O, control
// register access, interrupt masking and the CPUID instruction. Apart from
// IsIntel, every function in this file is declared without a body; the actual
// implementation lives in the matching assembly file and is stitched in by
// the linker, following the same split used by the entry stubs in
// package trap.
package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts sets the interrupt-enable flag (STI), allowing maskable
// hardware interrupts to be delivered.
func EnableInterrupts()

// DisableInterrupts clears the interrupt-enable flag (CLI).
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt (HLT).
func Halt()

// FlushTLBEntry flushes the TLB entry for a single virtual address (INVLPG).
func FlushTLBEntry(virtAddr uintptr)

// LoadPageDirectory loads the physical address of a page directory into CR3,
// switching the active address space and flushing the non-global TLB
// entries.
func LoadPageDirectory(pdPhysAddr uint32)

// ActivePageDirectory returns the physical address currently loaded in CR3.
func ActivePageDirectory() uint32

// ReadFaultAddress returns the value of CR2, the virtual address that
// triggered the most recent page fault on this CPU.
func ReadFaultAddress() uint32

// ID executes CPUID with EAX=leaf and returns the resulting EAX, EBX, ECX and
// EDX register values.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// PortWriteByte writes a uint8 value to the requested I/O port (OUT).
func PortWriteByte(port uint16, val uint8)

// PortWriteWord writes a uint16 value to the requested I/O port (OUT).
func PortWriteWord(port uint16, val uint16)

// PortWriteDword writes a uint32 value to the requested I/O port (OUT).
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested I/O port (IN).
func PortReadByte(port uint16) uint8

// PortReadWord reads a uint16 value from the requested I/O port (IN).
func PortReadWord(port uint16) uint16

// PortReadDword reads a uint32 value from the requested I/O port (IN).
func PortReadDword(port uint16) uint32

// LoadIDT loads the interrupt-descriptor-table register (LIDT) with the
// given base address and byte limit.
func LoadIDT(base uint32, limit uint16)

// LoadGDT loads the global-descriptor-table register (LGDT) with the given
// base address and byte limit.
func LoadGDT(base uint32, limit uint16)

// LoadTaskRegister loads the task register (LTR) with the given GDT
// selector, activating that CPU's task-state descriptor.
func LoadTaskRegister(selector uint16)
