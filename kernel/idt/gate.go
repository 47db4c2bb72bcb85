package idt

import "unsafe"

// numVectors is the fixed size of the interrupt-descriptor table spec.md
// §3 requires.
const numVectors = 256

// gateSize is the size in bytes of a single IA-32 32-bit interrupt-gate
// descriptor.
const gateSize = 8

// Table is the 256-entry interrupt-descriptor table: entry n points at the
// entry stub for vector n, with a segment selector equal to the kernel
// code segment and a descriptor-privilege level of 0, except for the
// breakpoint and system-call vectors, which carry DPL 3.
type Table struct {
	raw [numVectors][gateSize]byte
}

// encodeGate packs offset, selector and dpl into a 32-bit interrupt-gate
// descriptor: type field 0xE (32-bit interrupt gate), present bit set, the
// two bits above the type field reserved at zero. The byte layout matches
// the IA-32 descriptor table format exactly; any deviation here silently
// corrupts every vector built from it.
func encodeGate(offset uintptr, selector uint16, dpl uint8) [gateSize]byte {
	off := uint32(offset)
	var g [gateSize]byte
	g[0] = byte(off)
	g[1] = byte(off >> 8)
	g[2] = byte(selector)
	g[3] = byte(selector >> 8)
	g[4] = 0
	g[5] = 0x8E | (dpl << 5) // present(1) | DPL | S=0 | type=0xE
	g[6] = byte(off >> 16)
	g[7] = byte(off >> 24)
	return g
}

// Install places an interrupt gate for vector pointing at handler, using
// the given code selector and descriptor-privilege level. Called only
// during table construction; the table is immutable after boot (spec.md
// §9).
func (t *Table) Install(vector uint8, handler uintptr, selector uint16, dpl uint8) {
	t.raw[vector] = encodeGate(handler, selector, dpl)
}

// Base returns the table's base address and byte limit, the pair
// cpu.LoadIDT (via Load) and the LIDT instruction expect.
func (t *Table) Base() (uintptr, uint16) {
	return uintptr(unsafe.Pointer(&t.raw[0])), uint16(len(t.raw)*gateSize - 1)
}

// RawEntry exposes the encoded bytes for vector, for tests asserting on
// the exact DPL/selector/offset a gate was built with.
func (t *Table) RawEntry(vector uint8) [gateSize]byte {
	return t.raw[vector]
}

// BuildTable constructs the shared IDT exactly once from a vector-to-
// handler-address map: every vector gets DPL 0 except Breakpoint and
// Syscall, which get DPL 3 so user code may invoke them directly (spec.md
// §3, §4.C).
func BuildTable(stubs map[uint8]uintptr, codeSelector uint16) *Table {
	t := &Table{}
	for vector, addr := range stubs {
		dpl := uint8(0)
		if vector == Breakpoint || vector == Syscall {
			dpl = 3
		}
		t.Install(vector, addr, codeSelector, dpl)
	}
	return t
}
