// Package txchan owns the peripheral that shifts encoded frames out on the
// LED data pin.
//
// A Channel is created disabled. The expected lifecycle is:
//
//	ch, _ := txchan.New(cfg)       // allocate the transmit resource
//	enc, _ := ws2812.NewEncoder(t) // allocate the encoder
//	ch.Enable()
//	ch.Transmit(enc, frame)        // any number of times, never blocks
//	ch.Disable(); enc.Close(); ch.Close()
//
// Transmit only enqueues; completion is not reported. A full queue returns
// errcode.Busy and the frame is dropped.
package txchan

import (
	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
	"nodestatus-go/x/mathx"
)

// MaxQueueDepth bounds the frame queue; deeper requests are clamped.
const MaxQueueDepth = 32

// Config selects the pin and queue geometry.
type Config struct {
	Pin          int
	ResolutionHz uint32 // 0 => ws2812.DefaultResolutionHz
	QueueDepth   int    // frames; 0 => 4, at most MaxQueueDepth
	MemSymbols   int    // symbols buffered per frame; 0 => 64
}

func (c Config) withDefaults() Config {
	if c.ResolutionHz == 0 {
		c.ResolutionHz = ws2812.DefaultResolutionHz
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 4
	}
	c.QueueDepth = mathx.Clamp(c.QueueDepth, 1, MaxQueueDepth)
	if c.MemSymbols <= 0 {
		c.MemSymbols = 64
	}
	return c
}

func (c Config) validate() error {
	if c.Pin < 0 {
		return &errcode.E{C: errcode.UnknownPin, Op: "txchan.new"}
	}
	if c.MemSymbols < ws2812.SymbolsPerFrame {
		return &errcode.E{C: errcode.InvalidParams, Op: "txchan.new", Msg: "symbol memory smaller than one frame"}
	}
	return nil
}

// Channel is the transmit resource. Implementations are safe for use from
// one producer at a time; callers serialise Transmit themselves.
type Channel interface {
	Enable() error
	Disable() error
	// Transmit enqueues one frame (wire-order bytes) without waiting for it
	// to be shifted out.
	Transmit(enc *ws2812.Encoder, frame []byte) error
	Close() error
}

// Factory allocates a Channel; New is the platform default.
type Factory func(Config) (Channel, error)

// checkFrame is shared by all implementations.
func checkFrame(enc *ws2812.Encoder, frame []byte) error {
	if enc.Closed() {
		return errcode.Closed
	}
	if len(frame) != ws2812.FrameLen {
		return &errcode.E{C: errcode.InvalidPayload, Op: "txchan.transmit", Msg: "frame must be 3 bytes"}
	}
	return nil
}
