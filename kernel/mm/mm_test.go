package mm

import "testing"

func TestFrameMethods(t *testing.T) {
	for frameIndex := uintptr(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := frameIndex<<PageShift, frame.Address(); got != exp {
			t.Errorf("expected frame %d Address() to return %x; got %x", frameIndex, exp, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestPageMethods(t *testing.T) {
	for pageIndex := uintptr(0); pageIndex < 128; pageIndex++ {
		page := Page(pageIndex)

		if exp, got := pageIndex<<PageShift, page.Address(); got != exp {
			t.Errorf("expected page %d Address() to return %x; got %x", pageIndex, exp, got)
		}
	}
}

func TestPageAligned(t *testing.T) {
	if !PageAligned(UTOP) {
		t.Error("expected UTOP to be page-aligned")
	}
	if PageAligned(UTOP + 1) {
		t.Error("expected UTOP+1 to not be page-aligned")
	}
}
