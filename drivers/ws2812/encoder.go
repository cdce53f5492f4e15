// Package ws2812 encodes colors for a single WS2812B-class addressable LED.
//
// A color is sent as three bytes in wire order G, R, B. Each byte is sent
// most-significant bit first and each bit becomes one two-phase Symbol:
//
//	0 -> high 400 ns, low 800 ns
//	1 -> high 800 ns, low 400 ns
//
// Durations are expressed in ticks of a ResolutionHz clock (10 MHz by
// default, 100 ns per tick). No reset symbol is emitted: the line idles low
// between frames and any gap of at least ResetNs latches the color.
package ws2812

import (
	"nodestatus-go/errcode"
	"nodestatus-go/types"
	"nodestatus-go/x/mathx"
	"nodestatus-go/x/timex"
)

const (
	// DefaultResolutionHz gives 100 ns per tick.
	DefaultResolutionHz = 10_000_000

	// ToleranceNs is the per-phase margin allowed by the LED datasheet.
	ToleranceNs = 150

	// ThresholdNs separates a 0 bit from a 1 bit by the length of its high phase.
	ThresholdNs = 600

	// MinResetNs is the shortest idle-low gap that latches a frame.
	MinResetNs = 50_000

	// FrameLen is the number of bytes in one frame (one LED).
	FrameLen = 3

	// SymbolsPerFrame is FrameLen*8.
	SymbolsPerFrame = FrameLen * 8
)

// Phase is the nominal high and low time of one bit.
type Phase struct {
	HighNs uint32
	LowNs  uint32
}

// Timing describes the line protocol.
type Timing struct {
	ResolutionHz uint32
	Bit0         Phase
	Bit1         Phase
	ResetNs      uint32
}

// DefaultTiming is the WS2812B timing at 10 MHz.
var DefaultTiming = Timing{
	ResolutionHz: DefaultResolutionHz,
	Bit0:         Phase{HighNs: 400, LowNs: 800},
	Bit1:         Phase{HighNs: 800, LowNs: 400},
	ResetNs:      MinResetNs,
}

// Validate checks that every phase can be produced at the configured
// resolution within ToleranceNs and that the two bit shapes are separable.
func (t Timing) Validate() error {
	if t.ResolutionHz == 0 || timex.TickNs(t.ResolutionHz) > ToleranceNs*2 {
		return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "resolution too coarse"}
	}
	if timex.TickNs(t.ResolutionHz) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "resolution above 1 GHz"}
	}
	for _, ns := range [...]uint32{t.Bit0.HighNs, t.Bit0.LowNs, t.Bit1.HighNs, t.Bit1.LowNs} {
		ticks := timex.Ticks(ns, t.ResolutionHz)
		if ticks == 0 || ticks > 0x7FFF {
			return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "phase out of range"}
		}
		if mathx.AbsDiff(timex.Ns(ticks, t.ResolutionHz), ns) > ToleranceNs {
			return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "phase not representable"}
		}
	}
	if t.Bit0.HighNs >= ThresholdNs || t.Bit1.HighNs <= ThresholdNs {
		return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "bit shapes not separable"}
	}
	if t.ResetNs < MinResetNs {
		return &errcode.E{C: errcode.InvalidParams, Op: "ws2812.timing", Msg: "reset gap too short"}
	}
	return nil
}

// Symbol is one bit on the wire: Level0 for Duration0 ticks, then Level1
// for Duration1 ticks.
type Symbol struct {
	Duration0 uint16
	Level0    uint8
	Duration1 uint16
	Level1    uint8
}

// Encoder turns bytes into Symbols. It holds no per-call state, so one
// Encoder may be shared by any number of transmissions.
type Encoder struct {
	timing Timing
	bit0   Symbol
	bit1   Symbol
	closed bool
}

// NewEncoder validates t and precomputes the two bit symbols.
func NewEncoder(t Timing) (*Encoder, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	sym := func(p Phase) Symbol {
		return Symbol{
			Duration0: uint16(timex.Ticks(p.HighNs, t.ResolutionHz)),
			Level0:    1,
			Duration1: uint16(timex.Ticks(p.LowNs, t.ResolutionHz)),
			Level1:    0,
		}
	}
	return &Encoder{timing: t, bit0: sym(t.Bit0), bit1: sym(t.Bit1)}, nil
}

// Timing returns the timing the encoder was built with.
func (e *Encoder) Timing() Timing { return e.timing }

// Encode appends the symbols for data to dst, MSB first.
func (e *Encoder) Encode(dst []Symbol, data []byte) ([]Symbol, error) {
	if e == nil || e.closed {
		return dst, errcode.Closed
	}
	for _, b := range data {
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				dst = append(dst, e.bit1)
			} else {
				dst = append(dst, e.bit0)
			}
		}
	}
	return dst, nil
}

// Close releases the encoder. Closing twice is a no-op.
func (e *Encoder) Close() error {
	if e != nil {
		e.closed = true
	}
	return nil
}

// Closed reports whether Close has been called.
func (e *Encoder) Closed() bool { return e == nil || e.closed }

// Frame returns c in wire order (G, R, B).
func Frame(c types.Color) [FrameLen]byte {
	return [FrameLen]byte{c.G, c.R, c.B}
}

// ColorOf is the inverse of Frame.
func ColorOf(f [FrameLen]byte) types.Color {
	return types.Color{R: f[1], G: f[0], B: f[2]}
}

// Decode recovers bytes from symbols by measuring each high phase:
// longer than ThresholdNs is a 1, otherwise a 0.
func Decode(symbols []Symbol, resolutionHz uint32) ([]byte, error) {
	if len(symbols)%8 != 0 {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "ws2812.decode", Msg: "partial byte"}
	}
	out := make([]byte, 0, len(symbols)/8)
	var cur byte
	for i, s := range symbols {
		if s.Level0 != 1 || s.Level1 != 0 || s.Duration1 == 0 {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "ws2812.decode", Msg: "not a high-then-low symbol"}
		}
		cur <<= 1
		if timex.Ns(uint32(s.Duration0), resolutionHz) > ThresholdNs {
			cur |= 1
		}
		if i%8 == 7 {
			out = append(out, cur)
			cur = 0
		}
	}
	return out, nil
}
