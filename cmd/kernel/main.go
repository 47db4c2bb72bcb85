// Command kernel is the trampoline the boot assembly jumps to. Programming
// that assembly (multiboot header, initial GDT, minimal stack) is the boot
// path spec.md names as an external collaborator; this package only defines
// the Go symbol it hands control to.
package main

import "ringzero/kernel"

// frameCount and envCap stand in for values a real boot path would derive
// from a multiboot memory map and a fixed process-table size; both are
// compile-time constants here since spec.md treats their discovery as
// external.
const (
	frameCount = 32768 // 128 MiB at 4 KiB frames
	envCap     = 1024
)

// main is intentionally the only symbol this package exports, mirroring
// gopheros' own boot.go/stub.go trampolines: it exists so the compiler
// cannot optimize away kernel.Kmain, and takes no arguments of its own
// since this reference kernel core has nothing to source a multiboot
// pointer from.
func main() {
	kernel.Kmain(kernel.Config{FrameCount: frameCount, EnvCap: envCap})
}
