package ws2812

import (
	"testing"

	"nodestatus-go/errcode"
	"nodestatus-go/types"
)

func mustEncoder(t *testing.T) *Encoder {
	t.Helper()
	e, err := NewEncoder(DefaultTiming)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return e
}

func TestBitSymbols(t *testing.T) {
	e := mustEncoder(t)
	syms, err := e.Encode(nil, []byte{0x80})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(syms) != 8 {
		t.Fatalf("len=%d want 8", len(syms))
	}
	one := Symbol{Duration0: 8, Level0: 1, Duration1: 4, Level1: 0}
	zero := Symbol{Duration0: 4, Level0: 1, Duration1: 8, Level1: 0}
	if syms[0] != one {
		t.Fatalf("MSB symbol=%+v want %+v", syms[0], one)
	}
	for i := 1; i < 8; i++ {
		if syms[i] != zero {
			t.Fatalf("symbol %d=%+v want %+v", i, syms[i], zero)
		}
	}
}

func TestFrameIsGRB(t *testing.T) {
	f := Frame(types.Color{R: 40, G: 20, B: 0})
	if f != [3]byte{20, 40, 0} {
		t.Fatalf("Frame=%v want [20 40 0]", f)
	}
	if c := ColorOf(f); c != (types.Color{R: 40, G: 20, B: 0}) {
		t.Fatalf("ColorOf=%+v", c)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := mustEncoder(t)
	colors := []types.Color{
		{}, {R: 40, G: 20}, {B: 40}, {G: 60}, {R: 60},
		{R: 0xFF, G: 0xFF, B: 0xFF}, {R: 0xA5, G: 0x5A, B: 0x01},
	}
	for _, c := range colors {
		f := Frame(c)
		syms, err := e.Encode(nil, f[:])
		if err != nil {
			t.Fatalf("Encode(%+v): %v", c, err)
		}
		if len(syms) != SymbolsPerFrame {
			t.Fatalf("len=%d want %d", len(syms), SymbolsPerFrame)
		}
		got, err := Decode(syms, DefaultResolutionHz)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(got) != 3 || got[0] != c.G || got[1] != c.R || got[2] != c.B {
			t.Fatalf("decoded %v, want wire order G,R,B of %+v", got, c)
		}
	}
}

func TestEncodeIsPure(t *testing.T) {
	e := mustEncoder(t)
	a, _ := e.Encode(nil, []byte{0x3C, 0xC3})
	b, _ := e.Encode(nil, []byte{0x3C, 0xC3})
	if len(a) != len(b) {
		t.Fatal("length differs between identical calls")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("symbol %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPhasesWithinTolerance(t *testing.T) {
	e := mustEncoder(t)
	const tick = 100 // ns at 10 MHz
	check := func(name string, ticks uint16, nominal int) {
		got := int(ticks) * tick
		if d := got - nominal; d > ToleranceNs || d < -ToleranceNs {
			t.Fatalf("%s=%dns nominal %dns", name, got, nominal)
		}
	}
	check("bit0 high", e.bit0.Duration0, 400)
	check("bit0 low", e.bit0.Duration1, 800)
	check("bit1 high", e.bit1.Duration0, 800)
	check("bit1 low", e.bit1.Duration1, 400)
}

func TestTimingValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Timing)
		ok   bool
	}{
		{"default", func(*Timing) {}, true},
		{"zero resolution", func(t *Timing) { t.ResolutionHz = 0 }, false},
		{"coarse resolution", func(t *Timing) { t.ResolutionHz = 1_000_000 }, false},
		{"sub-nanosecond tick", func(t *Timing) { t.ResolutionHz = 2_000_000_000 }, false},
		{"bit0 too long", func(t *Timing) { t.Bit0.HighNs = 700 }, false},
		{"bit1 too short", func(t *Timing) { t.Bit1.HighNs = 500 }, false},
		{"zero phase", func(t *Timing) { t.Bit1.LowNs = 0 }, false},
		{"short reset", func(t *Timing) { t.ResetNs = 10_000 }, false},
		{"8 MHz", func(t *Timing) { t.ResolutionHz = 8_000_000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := DefaultTiming
			tt.mod(&tm)
			err := tm.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && errcode.Of(err) != errcode.InvalidParams {
				t.Fatalf("want invalid_params, got %v", err)
			}
		})
	}
}

func TestEncodeAfterClose(t *testing.T) {
	e := mustEncoder(t)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := e.Encode(nil, []byte{1}); err != errcode.Closed {
		t.Fatalf("Encode after close: %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(make([]Symbol, 7), DefaultResolutionHz); errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("partial byte: %v", err)
	}
	bad := make([]Symbol, 8) // all-zero levels
	if _, err := Decode(bad, DefaultResolutionHz); errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("bad levels: %v", err)
	}
}
