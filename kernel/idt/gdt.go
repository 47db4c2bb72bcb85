package idt

import (
	"ringzero/kernel/mm"
	"unsafe"
)

// SegDesc is an 8-byte IA-32 GDT segment or system descriptor.
type SegDesc [8]byte

// Fixed GDT slot indices. Slots 0-4 are the flat code/data segments every
// environment and the kernel share; slot 5 onward holds one task-state
// descriptor per CPU, mirroring the original kernel's
// gdt[(GD_TSS0>>3)+i] layout.
const (
	gdtNull     = 0
	gdtKernCode = 1
	gdtKernData = 2
	gdtUserCode = 3
	gdtUserData = 4
	gdtTSS0     = 5
)

// Selector values derived from the fixed slot layout above. User selectors
// already carry RPL 3; env_set_trapframe's safety clamps rely on these
// exact values.
const (
	KernCodeSelector = uint16(gdtKernCode << 3)
	KernDataSelector = uint16(gdtKernData << 3)
	UserCodeSelector = uint16(gdtUserCode<<3) | 3
	UserDataSelector = uint16(gdtUserData<<3) | 3
)

// encodeFlatSegment packs a base-0, limit-4GiB, 4KiB-granularity code or
// data descriptor. typ is the low nibble of the IA-32 access byte: 0xA for
// an executable/readable code segment, 0x2 for a writable data segment.
func encodeFlatSegment(typ byte, dpl uint8) SegDesc {
	var d SegDesc
	d[0] = 0xFF // limit[0:16) = 0xFFFFF, 4KiB granularity -> covers 4GiB
	d[1] = 0xFF
	d[2] = 0
	d[3] = 0
	d[4] = 0
	d[5] = 0x90 | (dpl << 5) | typ // present | DPL | S=1 (code/data) | type
	d[6] = 0xCF                   // granularity=1, 32-bit default op size, limit[16:20)=0xF
	d[7] = 0
	return d
}

// encodeTSSDescriptor packs a 32-bit available TSS system descriptor (type
// 0x9) at base, sized limit+1 bytes.
func encodeTSSDescriptor(base uintptr, limit uint32) SegDesc {
	var d SegDesc
	b := uint32(base)
	d[0] = byte(limit)
	d[1] = byte(limit >> 8)
	d[2] = byte(b)
	d[3] = byte(b >> 8)
	d[4] = byte(b >> 16)
	d[5] = 0x89 // present | DPL 0 | S=0 (system) | type=0x9 (32-bit TSS)
	d[6] = byte((limit >> 16) & 0x0F)
	d[7] = byte(b >> 24)
	return d
}

// GDT is the global descriptor table: the five fixed flat segments plus
// one task-state descriptor slot per CPU (spec.md §3 "the GDT is written
// only in the task-state slot for each CPU and only by that CPU").
type GDT struct {
	raw [gdtTSS0 + mm.NCPU]SegDesc
}

// NewGDT builds a GDT with its fixed kernel/user code and data segments
// already installed; every TSS slot starts zeroed until InstallTSS is
// called for that CPU.
func NewGDT() *GDT {
	g := &GDT{}
	g.raw[gdtKernCode] = encodeFlatSegment(0xA, 0)
	g.raw[gdtKernData] = encodeFlatSegment(0x2, 0)
	g.raw[gdtUserCode] = encodeFlatSegment(0xA, 3)
	g.raw[gdtUserData] = encodeFlatSegment(0x2, 3)
	return g
}

// InstallTSS writes cpu i's task-state descriptor, sized to the task-state
// record (spec.md §4.C step 3). Overwriting an already-installed slot for
// a different CPU's TSS address is the caller's responsibility to avoid;
// see Bringup.InitCPU for the one-time-per-CPU guard.
func (g *GDT) InstallTSS(i int, tssAddr uintptr, tssSize uint32) {
	g.raw[gdtTSS0+i] = encodeTSSDescriptor(tssAddr, tssSize-1)
}

// TSSSelector returns the GDT selector for CPU i's task-state descriptor,
// the value LoadTaskRegister must be called with.
func TSSSelector(i int) uint16 {
	return uint16((gdtTSS0 + i) << 3)
}

// Base returns the table's base address and byte limit for LGDT.
func (g *GDT) Base() (uintptr, uint16) {
	return uintptr(unsafe.Pointer(&g.raw[0])), uint16(len(g.raw)*8 - 1)
}
