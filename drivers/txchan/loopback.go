//go:build !tinygo

package txchan

import (
	"sync"

	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
)

// Transmission is one frame as it left the loopback channel.
type Transmission struct {
	Pin          int
	Frame        [ws2812.FrameLen]byte
	Symbols      []ws2812.Symbol
	ResolutionHz uint32
}

// Option configures a Loopback.
type Option func(*Loopback)

// WithSink receives every transmitted frame on the channel's worker goroutine.
func WithSink(fn func(Transmission)) Option {
	return func(l *Loopback) { l.sink = fn }
}

// Loopback is the host implementation: frames are encoded on Transmit,
// queued, and handed to an optional sink by a single worker goroutine,
// standing in for the peripheral shifting bits out.
type Loopback struct {
	cfg  Config
	sink func(Transmission)

	mu      sync.Mutex
	q       chan Transmission
	enabled bool
	closed  bool
	sent    uint32
	dropped uint32
	last    [ws2812.FrameLen]byte
	hasLast bool

	done chan struct{}
}

var _ Channel = (*Loopback)(nil)

// New allocates the platform default channel.
func New(cfg Config) (Channel, error) { return NewLoopback(cfg) }

// NewLoopback allocates a loopback channel and starts its worker.
func NewLoopback(cfg Config, opts ...Option) (*Loopback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := &Loopback{
		cfg:  cfg,
		q:    make(chan Transmission, cfg.QueueDepth),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.worker()
	return l, nil
}

func (l *Loopback) worker() {
	defer close(l.done)
	for tx := range l.q {
		l.mu.Lock()
		l.sent++
		l.last, l.hasLast = tx.Frame, true
		l.mu.Unlock()
		if l.sink != nil {
			l.sink(tx)
		}
	}
}

func (l *Loopback) Enable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errcode.Closed
	}
	l.enabled = true
	return nil
}

func (l *Loopback) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errcode.Closed
	}
	l.enabled = false
	return nil
}

func (l *Loopback) Transmit(enc *ws2812.Encoder, frame []byte) error {
	if err := checkFrame(enc, frame); err != nil {
		return err
	}
	tx := Transmission{Pin: l.cfg.Pin, ResolutionHz: l.cfg.ResolutionHz}
	copy(tx.Frame[:], frame)
	syms, err := enc.Encode(make([]ws2812.Symbol, 0, l.cfg.MemSymbols), frame)
	if err != nil {
		return err
	}
	tx.Symbols = syms

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return errcode.Closed
	case !l.enabled:
		return errcode.NotReady
	}
	select {
	case l.q <- tx:
		return nil
	default:
		l.dropped++
		return errcode.Busy
	}
}

// Close stops the worker after it has drained the queue.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed, l.enabled = true, false
	close(l.q)
	l.mu.Unlock()
	<-l.done
	return nil
}

// Stats returns frames handed to the sink and frames dropped on a full queue.
func (l *Loopback) Stats() (sent, dropped uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent, l.dropped
}

// Last returns the most recently shifted-out frame in wire order.
func (l *Loopback) Last() ([ws2812.FrameLen]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.hasLast
}
