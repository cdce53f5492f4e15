//go:build rp2040 || rp2350

package txchan

import (
	"machine"
	"sync"

	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
	"nodestatus-go/x/mathx"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// The PIO program splits a 1250 ns bit into thirds; these are the phase
// lengths it produces.
var pioTiming = ws2812.Timing{
	Bit0: ws2812.Phase{HighNs: 417, LowNs: 833},
	Bit1: ws2812.Phase{HighNs: 833, LowNs: 417},
}

// pioChannel drives the LED from a PIO state machine. The queue is the
// state machine's TX FIFO; the waveform is generated by the PIO program
// rather than from Symbols.
type pioChannel struct {
	mu      sync.Mutex
	sm      pio.StateMachine
	dev     *piolib.WS2812B
	enabled bool
	closed  bool
	checked *ws2812.Encoder
}

var _ Channel = (*pioChannel)(nil)

// New claims a free PIO0 state machine and loads the WS2812B program on cfg.Pin.
func New(cfg Config) (Channel, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Pin > 29 {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "txchan.new"}
	}
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, &errcode.E{C: errcode.Busy, Op: "txchan.new", Msg: "no free state machine", Err: err}
	}
	dev, err := piolib.NewWS2812B(sm, machine.Pin(cfg.Pin))
	if err != nil {
		sm.Unclaim()
		return nil, &errcode.E{C: errcode.Error, Op: "txchan.new", Msg: "pio program", Err: err}
	}
	sm.SetEnabled(false)
	return &pioChannel{sm: sm, dev: dev}, nil
}

func (c *pioChannel) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errcode.Closed
	}
	c.sm.SetEnabled(true)
	c.enabled = true
	return nil
}

func (c *pioChannel) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errcode.Closed
	}
	c.sm.SetEnabled(false)
	c.enabled = false
	return nil
}

// compatible reports whether the PIO program reproduces enc's timing.
func compatible(enc *ws2812.Encoder) bool {
	t := enc.Timing()
	near := func(a, b uint32) bool { return mathx.AbsDiff(a, b) <= ws2812.ToleranceNs }
	return near(t.Bit0.HighNs, pioTiming.Bit0.HighNs) && near(t.Bit0.LowNs, pioTiming.Bit0.LowNs) &&
		near(t.Bit1.HighNs, pioTiming.Bit1.HighNs) && near(t.Bit1.LowNs, pioTiming.Bit1.LowNs)
}

func (c *pioChannel) Transmit(enc *ws2812.Encoder, frame []byte) error {
	if err := checkFrame(enc, frame); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errcode.Closed
	case !c.enabled:
		return errcode.NotReady
	}
	if c.checked != enc {
		if !compatible(enc) {
			return &errcode.E{C: errcode.Unsupported, Op: "txchan.transmit", Msg: "timing not reproducible by pio program"}
		}
		c.checked = enc
	}
	if c.dev.IsQueueFull() {
		return errcode.Busy
	}
	// Left-aligned GRB, as the program shifts out 24 bits MSB first.
	c.dev.PutRaw(uint32(frame[0])<<24 | uint32(frame[1])<<16 | uint32(frame[2])<<8)
	return nil
}

func (c *pioChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.sm.SetEnabled(false)
	c.sm.Unclaim()
	c.closed, c.enabled = true, false
	return nil
}
