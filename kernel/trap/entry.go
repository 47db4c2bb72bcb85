package trap

import "unsafe"

// Stub functions are implemented in entry_386.s: each pushes an error code
// (real or a zero placeholder) and its vector number, then falls into the
// shared alltraps tail. They are declared here purely so Go code can take
// their addresses; none has a Go body and none is ever called directly from
// Go.
func stubDivide()
func stubDebug()
func stubBreakpoint()
func stubOverflow()
func stubBound()
func stubInvalidOp()
func stubDeviceNA()
func stubDoubleFault()
func stubInvalidTSS()
func stubSegmentNP()
func stubStack()
func stubGPFault()
func stubPageFault()
func stubFPError()
func stubIRQTimer()
func stubIRQKeyboard()
func stubIRQSpurious()
func stubSyscall()

// funcAddr returns the entry address of a top-level, no-argument Go
// function without going through reflect: fn is itself a pointer to a
// single-word function-value record whose first word is the code address
// (see gopheros' kernel/gate.pointer-of-func trick).
func funcAddr(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// Stubs returns the vector-to-entry-stub-address map idt.NewBringup needs,
// covering every vector spec.md §4.A names.
func Stubs() map[uint8]uintptr {
	return map[uint8]uintptr{
		divide:      funcAddr(stubDivide),
		debug:       funcAddr(stubDebug),
		breakpoint:  funcAddr(stubBreakpoint),
		overflow:    funcAddr(stubOverflow),
		bound:       funcAddr(stubBound),
		invalidOp:   funcAddr(stubInvalidOp),
		deviceNA:    funcAddr(stubDeviceNA),
		doubleFault: funcAddr(stubDoubleFault),
		invalidTSS:  funcAddr(stubInvalidTSS),
		segmentNP:   funcAddr(stubSegmentNP),
		stack:       funcAddr(stubStack),
		gpFault:     funcAddr(stubGPFault),
		pageFault:   funcAddr(stubPageFault),
		fpError:     funcAddr(stubFPError),
		irqTimer:    funcAddr(stubIRQTimer),
		irqKeyboard: funcAddr(stubIRQKeyboard),
		irqSpurious: funcAddr(stubIRQSpurious),
		syscallVec:  funcAddr(stubSyscall),
	}
}
