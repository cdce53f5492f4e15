//go:build tinygo && !rp2040 && !rp2350

package txchan

import (
	"machine"
	"sync"

	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"

	tgws2812 "tinygo.org/x/drivers/ws2812"
)

// bitbangChannel uses the cycle-counted ws2812 driver. Writing blocks for
// the ~30 µs a frame takes, so frames are queued and written by one
// goroutine to keep Transmit non-blocking.
type bitbangChannel struct {
	mu      sync.Mutex
	dev     tgws2812.Device
	q       chan [ws2812.FrameLen]byte
	done    chan struct{}
	enabled bool
	closed  bool
}

var _ Channel = (*bitbangChannel)(nil)

func New(cfg Config) (Channel, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pin := machine.Pin(cfg.Pin)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	c := &bitbangChannel{
		dev:  tgws2812.NewWS2812(pin),
		q:    make(chan [ws2812.FrameLen]byte, cfg.QueueDepth),
		done: make(chan struct{}),
	}
	go c.writer()
	return c, nil
}

func (c *bitbangChannel) writer() {
	defer close(c.done)
	for f := range c.q {
		_, _ = c.dev.Write(f[:])
	}
}

func (c *bitbangChannel) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errcode.Closed
	}
	c.enabled = true
	return nil
}

func (c *bitbangChannel) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errcode.Closed
	}
	c.enabled = false
	return nil
}

// Transmit ignores the encoder's symbols: the driver's timing is fixed per
// CPU clock. The encoder still gates use after close.
func (c *bitbangChannel) Transmit(enc *ws2812.Encoder, frame []byte) error {
	if err := checkFrame(enc, frame); err != nil {
		return err
	}
	var f [ws2812.FrameLen]byte
	copy(f[:], frame)
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errcode.Closed
	case !c.enabled:
		return errcode.NotReady
	}
	select {
	case c.q <- f:
		return nil
	default:
		return errcode.Busy
	}
}

func (c *bitbangChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed, c.enabled = true, false
	close(c.q)
	c.mu.Unlock()
	<-c.done
	return nil
}
