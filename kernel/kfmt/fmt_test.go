package kfmt

import (
	"bytes"
	"testing"
)

// TestPrintfMatchesRingzeroDiagnosticCallSites pins Printf's verb behavior
// against the exact format strings the kernel actually prints: trapframe's
// register dump, pgfault's "no upcall" diagnostic, Boot's ready banner, and
// trap's routing-table fallbacks. If one of those format strings drifts out
// of sync with the values it's fed, this is where it shows up.
func TestPrintfMatchesRingzeroDiagnosticCallSites(t *testing.T) {
	specs := []struct {
		name   string
		fn     func()
		expect string
	}{
		{
			"trapframe.DumpTo header with a resolved vector name",
			func() { Printf("TRAP frame:\n  trap 0x%x (%s)\n  err  0x%x\n", uint32(14), "page fault", uint32(4)) },
			"TRAP frame:\n  trap 0xe (page fault)\n  err  0x4\n",
		},
		{
			"trapframe.DumpTo header with no vector name (idt.VectorName absent)",
			func() { Printf("TRAP frame:\n  trap 0x%x\n  err  0x%x\n", uint32(13), uint32(0)) },
			"TRAP frame:\n  trap 0xd\n  err  0x0\n",
		},
		{
			"trapframe.DumpTo eip/cs/flags line",
			func() { Printf("  eip  0x%x\n  cs   0x%x\n  flag 0x%x\n", uint32(0x8000), uint16(0x1b), uint32(0x202)) },
			"  eip  0x8000\n  cs   0x1b\n  flag 0x202\n",
		},
		{
			"trapframe.DumpTo esp/ss line, only printed FromUserMode",
			func() { Printf("  esp  0x%x\n  ss   0x%x\n", uint32(0x7000), uint16(0x23)) },
			"  esp  0x7000\n  ss   0x23\n",
		},
		{
			"trapframe.DumpTo eax/ebx/ecx/edx line",
			func() {
				Printf("  eax  0x%x  ebx 0x%x  ecx 0x%x  edx 0x%x\n", uint32(1), uint32(2), uint32(3), uint32(4))
			},
			"  eax  0x1  ebx 0x2  ecx 0x3  edx 0x4\n",
		},
		{
			"trapframe.DumpTo ds/es line",
			func() { Printf("  ds   0x%x  es  0x%x\n", uint16(0x23), uint16(0x2b)) },
			"  ds   0x23  es  0x2b\n",
		},
		{
			"pgfault.FaultMessage's env/va/eip triple",
			func() { Printf("[%08x] user fault va %08x ip %08x\n", uint32(7), uint32(0x804000), uint32(0x800020)) },
			"[00000007] user fault va 00804000 ip 00800020\n",
		},
		{
			"Boot's ready banner",
			func() {
				Printf("ringzero: kernel core ready, %d frame(s), %d environment slot(s)\n", 64, 16)
			},
			"ringzero: kernel core ready, 64 frame(s), 16 environment slot(s)\n",
		},
		{
			"trap.route's spurious-interrupt notice",
			func() { Printf("trap: spurious interrupt on CPU %d\n", 1) },
			"trap: spurious interrupt on CPU 1\n",
		},
		{
			"trap.route's unrecognized-user-trap notice",
			func() { Printf("Unexpected trap %d from user space\n", uint32(48)) },
			"Unexpected trap 48 from user space\n",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	for _, spec := range specs {
		buf.Reset()
		spec.fn()
		if got := buf.String(); got != spec.expect {
			t.Errorf("%s: expected\n%q\ngot\n%q", spec.name, spec.expect, got)
		}
	}
}

// TestPrintfWidthPaddingMatchesDumpConventions exercises the two padding
// styles the dumps above depend on: zero-padded hex (pgfault's %08x) and
// space-padded decimal, plus the guard that clamps a runaway width request
// to maxBufSize instead of overrunning numFmtBuf.
func TestPrintfWidthPaddingMatchesDumpConventions(t *testing.T) {
	specs := []struct {
		name   string
		fn     func()
		expect string
	}{
		{
			"zero-padded hex, value already at width",
			func() { Printf("%08x", uint32(0x12345678)) },
			"12345678",
		},
		{
			"zero-padded hex, value shorter than width",
			func() { Printf("%08x", uint32(0x1b)) },
			"0000001b",
		},
		{
			"space-padded decimal",
			func() { Printf("'%10d'", 123) },
			"'       123'",
		},
		{
			"negative decimal with space padding",
			func() { Printf("'%10d'", -12345678) },
			"' -12345678'",
		},
		{
			"width wider than maxBufSize is clamped instead of corrupting adjacent output",
			func() { Printf("'%128x'", -0xbadf00d) },
			"'-" + zeros(maxBufSize-8) + "badf00d'",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	for _, spec := range specs {
		buf.Reset()
		spec.fn()
		if got := buf.String(); got != spec.expect {
			t.Errorf("%s: expected\n%q\ngot\n%q", spec.name, spec.expect, got)
		}
	}
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// TestPrintfBool exercises %t, the one verb none of ringzero's current call
// sites use yet; kept because Fprintf advertises it as part of the
// supported verb set and a future dump (e.g. an environment's Recving flag)
// is a plausible consumer.
func TestPrintfBool(t *testing.T) {
	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	buf.Reset()
	Printf("recving=%t", true)
	if got := buf.String(); got != "recving=true" {
		t.Fatalf("expected %q; got %q", "recving=true", got)
	}

	buf.Reset()
	Printf("recving=%t", false)
	if got := buf.String(); got != "recving=false" {
		t.Fatalf("expected %q; got %q", "recving=false", got)
	}
}

// TestPrintfHandlesMalformedDiagnosticCalls guards against a format string
// at one of the call sites above drifting out of sync with the values it's
// fed: too few args, too many, an unsupported verb, or an argument of the
// wrong Go type for its verb. Each of these must degrade to a visible
// marker in the transcript rather than panicking the kernel that is, in
// most of these call sites, already in the middle of reporting a fault.
func TestPrintfHandlesMalformedDiagnosticCalls(t *testing.T) {
	specs := []struct {
		name   string
		fn     func()
		expect string
	}{
		{
			"trap dump format string missing its trailing errcode argument",
			func() { Printf("TRAP frame:\n  trap 0x%x (%s)\n  err  0x%x\n", uint32(14), "page fault") },
			"TRAP frame:\n  trap 0xe (page fault)\n  err  0x(MISSING)\n",
		},
		{
			"trap dump format string fed one extra argument",
			func() {
				Printf("TRAP frame:\n  trap 0x%x (%s)\n  err  0x%x\n", uint32(14), "page fault", uint32(4), "extra")
			},
			"TRAP frame:\n  trap 0xe (page fault)\n  err  0x4\n%!(EXTRA)",
		},
		{
			"unsupported verb reaching Fprintf",
			func() { Printf("bad verb %Q") },
			"bad verb %!(NOVERB)",
		},
		{
			"%t fed a non-bool argument",
			func() { Printf("recving=%t", "yes") },
			"recving=%!(WRONGTYPE)",
		},
		{
			"%x fed a non-integer argument (an error name string instead of a numeric code)",
			func() { Printf("code=%x", "BadEnv") },
			"code=%!(WRONGTYPE)",
		},
		{
			"%s fed a non-string, non-[]byte argument",
			func() { Printf("upcall=%s", 0x900000) },
			"upcall=%!(WRONGTYPE)",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	for _, spec := range specs {
		buf.Reset()
		spec.fn()
		if got := buf.String(); got != spec.expect {
			t.Errorf("%s: expected\n%q\ngot\n%q", spec.name, spec.expect, got)
		}
	}
}

// TestSetOutputSinkDrainsEarlyPrintBuffer mirrors the ordering Boot relies
// on: kernel/idt's bringup can call panicFn (and therefore Printf) before
// Boot ever calls SetOutputSink, so anything printed in that window must
// still land in the console once one is finally wired, and in the order it
// was written.
func TestSetOutputSinkDrainsEarlyPrintBuffer(t *testing.T) {
	defer SetOutputSink(nil)
	SetOutputSink(nil)

	Printf("[idt] bringup failed on CPU %d\n", 0)

	var con bytes.Buffer
	SetOutputSink(&con)

	if exp, got := "[idt] bringup failed on CPU 0\n", con.String(); got != exp {
		t.Fatalf("expected the buffered bringup failure to be drained into the console:\nexpected %q\ngot %q", exp, got)
	}

	con.Reset()
	Printf("ringzero: kernel core ready, %d frame(s), %d environment slot(s)\n", 64, 16)
	if exp, got := "ringzero: kernel core ready, 64 frame(s), 16 environment slot(s)\n", con.String(); got != exp {
		t.Fatalf("expected Printf to keep writing to the now-wired console:\nexpected %q\ngot %q", exp, got)
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer

	exp := "[00000001] user fault va 00804000 ip 00800020\n"
	Fprintf(&buf, "[%08x] user fault va %08x ip %08x\n", uint32(1), uint32(0x804000), uint32(0x800020))

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}
