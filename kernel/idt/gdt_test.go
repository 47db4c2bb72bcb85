package idt

import "testing"

func TestNewGDTFlatSegments(t *testing.T) {
	g := NewGDT()

	cases := []struct {
		name    string
		idx     int
		wantDPL uint8
	}{
		{"kernel code", gdtKernCode, 0},
		{"kernel data", gdtKernData, 0},
		{"user code", gdtUserCode, 3},
		{"user data", gdtUserData, 3},
	}
	for _, c := range cases {
		raw := g.raw[c.idx]
		if raw[5]&0x80 == 0 {
			t.Errorf("%s: expected present bit set", c.name)
		}
		if raw[5]&0x10 == 0 {
			t.Errorf("%s: expected S=1 (code/data descriptor)", c.name)
		}
		dpl := (raw[5] >> 5) & 0x3
		if dpl != c.wantDPL {
			t.Errorf("%s: expected DPL %d; got %d", c.name, c.wantDPL, dpl)
		}
	}
}

func TestInstallTSSAndSelector(t *testing.T) {
	g := NewGDT()
	g.InstallTSS(2, 0xC0001000, 104)

	raw := g.raw[gdtTSS0+2]
	base := uint32(raw[2]) | uint32(raw[3])<<8 | uint32(raw[4])<<16 | uint32(raw[7])<<24
	if base != 0xC0001000 {
		t.Fatalf("expected TSS base 0xC0001000; got %#x", base)
	}
	limit := uint32(raw[0]) | uint32(raw[1])<<8
	if limit != 103 {
		t.Fatalf("expected TSS limit 103; got %d", limit)
	}
	if raw[5] != 0x89 {
		t.Fatalf("expected access byte 0x89 (present|DPL0|type=9); got %#x", raw[5])
	}

	if got, want := TSSSelector(2), uint16((gdtTSS0+2)<<3); got != want {
		t.Fatalf("expected selector %#x; got %#x", want, got)
	}
}
