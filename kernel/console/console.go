// Package console defines the Console collaborator used by cputs and cgetc:
// a place to write diagnostic and user output, and a non-blocking source of
// typed input. The reference implementation is a pair of ring buffers
// grounded on gopheros' kernel/kfmt/ringbuf.go, standing in for the real
// VGA-text/serial output path and keyboard interrupt handler, which are
// external collaborators referenced by name only in spec.md §2.
package console

import "io"

// Console is implemented by anything the kernel can write kernel/user output
// to and read typed input from. ReadByte never blocks: cgetc's contract is a
// non-blocking read of at most one pending character.
type Console interface {
	io.Writer
	io.ByteWriter

	// ReadByte returns the next buffered input byte, or ok=false if none
	// is available.
	ReadByte() (byte, bool)
}

// ringBufferSize is the size of the input and output ring buffers. Must be a
// power of two.
const ringBufferSize = 512

// Ring is a reference Console backed by two fixed-size ring buffers: one
// accumulating everything written to the console (e.g. via cputs), and one
// holding keyboard-style input bytes waiting to be consumed by cgetc. It
// exists purely so that the trap/syscall core can be exercised by tests
// without a real video console or keyboard interrupt handler.
type Ring struct {
	out    [ringBufferSize]byte
	outW   int
	in     [ringBufferSize]byte
	inR    int
	inW    int
}

// Write appends p to the output ring buffer, overwriting the oldest bytes
// once it wraps, and always reports success.
func (r *Ring) Write(p []byte) (int, error) {
	for _, b := range p {
		r.out[r.outW&(ringBufferSize-1)] = b
		r.outW++
	}
	return len(p), nil
}

// WriteByte appends a single byte to the output ring buffer.
func (r *Ring) WriteByte(b byte) error {
	_, err := r.Write([]byte{b})
	return err
}

// Output returns a copy of the bytes written so far, oldest first, capped to
// the ring buffer's capacity.
func (r *Ring) Output() []byte {
	n := r.outW
	if n > ringBufferSize {
		n = ringBufferSize
	}
	out := make([]byte, n)
	start := r.outW - n
	for i := 0; i < n; i++ {
		out[i] = r.out[(start+i)&(ringBufferSize-1)]
	}
	return out
}

// Feed injects bytes as if they had been typed at the keyboard, making them
// available to subsequent calls to ReadByte. It is the test/driver-side
// analogue of the keyboard interrupt handler pushing a scancode-translated
// byte into the input buffer.
func (r *Ring) Feed(p []byte) {
	for _, b := range p {
		if r.inW-r.inR >= ringBufferSize {
			r.inR++ // drop the oldest byte rather than block
		}
		r.in[r.inW&(ringBufferSize-1)] = b
		r.inW++
	}
}

// ReadByte returns the oldest pending input byte, if any.
func (r *Ring) ReadByte() (byte, bool) {
	if r.inR == r.inW {
		return 0, false
	}
	b := r.in[r.inR&(ringBufferSize-1)]
	r.inR++
	return b, true
}

var _ Console = (*Ring)(nil)
