// Package button measures how long the node's button is held and turns
// the hold into LED feedback and, on release, a reset action.
package button

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nodestatus-go/logging"
	"nodestatus-go/types"
)

// Pin is the sampled input.
type Pin interface {
	Get() bool
}

type Config struct {
	PollInterval      time.Duration
	FeedbackAfter     time.Duration
	NetworkResetAfter time.Duration
	FullResetAfter    time.Duration
	ActiveLow         bool // pressed reads low (pull-up wiring)
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      100 * time.Millisecond,
		FeedbackAfter:     time.Second,
		NetworkResetAfter: 3 * time.Second,
		FullResetAfter:    10 * time.Second,
		ActiveLow:         true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.FeedbackAfter <= 0 {
		c.FeedbackAfter = d.FeedbackAfter
	}
	if c.NetworkResetAfter <= 0 {
		c.NetworkResetAfter = d.NetworkResetAfter
	}
	if c.FullResetAfter <= c.NetworkResetAfter {
		c.FullResetAfter = c.NetworkResetAfter + d.FullResetAfter - d.NetworkResetAfter
	}
	return c
}

type Option func(*Poller)

func OnNetworkReset(fn func()) Option { return func(p *Poller) { p.onNetwork = fn } }

func OnFullReset(fn func()) Option { return func(p *Poller) { p.onFull = fn } }

// OnFeedback receives hold feedback; it is called only when the level changes.
func OnFeedback(fn func(types.Feedback)) Option { return func(p *Poller) { p.onFeedback = fn } }

func WithLogger(l *slog.Logger) Option { return func(p *Poller) { p.log = l } }

// Poller samples Pin every PollInterval on its own goroutine.
type Poller struct {
	pin Pin
	cfg Config
	log *slog.Logger

	onNetwork  func()
	onFull     func()
	onFeedback func(types.Feedback)

	// owned by the polling goroutine
	polls    uint32
	feedback types.Feedback

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(pin Pin, cfg Config, opts ...Option) *Poller {
	p := &Poller{pin: pin, cfg: cfg.withDefaults()}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logging.GetLogger("button")
	}
	return p
}

// Start launches the polling loop. Starting a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.log.Warn("already running")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	p.log.Info("started", "network_reset", p.cfg.NetworkResetAfter, "full_reset", p.cfg.FullResetAfter)
}

// Stop ends the loop and waits for it. Stopping a stopped poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(p.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.step()
		}
	}
}

func (p *Poller) pressed() bool {
	return p.pin.Get() != p.cfg.ActiveLow
}

func (p *Poller) held() time.Duration {
	return time.Duration(p.polls) * p.cfg.PollInterval
}

// step handles one sample.
func (p *Poller) step() {
	if p.pressed() {
		p.polls++
		if f, ok := p.holdFeedback(); ok {
			p.emit(f)
		}
		return
	}
	if p.polls == 0 {
		return
	}
	held := p.held()
	p.polls = 0
	p.release(held)
	p.feedback = types.FeedbackOff
}

// holdFeedback alternates warning and critical every poll up to the
// network threshold, every five polls up to the full threshold, and holds
// critical beyond it.
func (p *Poller) holdFeedback() (types.Feedback, bool) {
	held := p.held()
	alt := func(odd bool) types.Feedback {
		if odd {
			return types.FeedbackWarning
		}
		return types.FeedbackCritical
	}
	switch {
	case held >= p.cfg.FullResetAfter:
		return types.FeedbackCritical, true
	case held >= p.cfg.NetworkResetAfter:
		return alt((p.polls/5)%2 == 1), true
	case held >= p.cfg.FeedbackAfter:
		return alt(p.polls%2 == 1), true
	}
	return types.FeedbackOff, false
}

func (p *Poller) emit(f types.Feedback) {
	if f == p.feedback || p.onFeedback == nil {
		p.feedback = f
		return
	}
	p.feedback = f
	p.onFeedback(f)
}

func (p *Poller) release(held time.Duration) {
	var fn func()
	var what string
	switch {
	case held >= p.cfg.FullResetAfter:
		fn, what = p.onFull, "full reset"
	case held >= p.cfg.NetworkResetAfter:
		fn, what = p.onNetwork, "network reset"
	case held >= p.cfg.FeedbackAfter:
		p.emit(types.FeedbackOff)
		return
	default:
		return
	}
	if fn == nil {
		p.log.Warn("no callback set", "action", what, "held", held)
		p.emit(types.FeedbackOff)
		return
	}
	p.log.Info("triggering", "action", what, "held", held)
	fn()
}
