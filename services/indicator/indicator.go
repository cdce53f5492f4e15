// Package indicator drives the node's single status LED.
//
// An Indicator owns a transmit channel, an encoder and two timers (blink
// and timeout) for its whole life. SetState and the timer callbacks share
// one mutex, and each callback checks the arming sequence it was fired
// with, so a callback never acts on a configuration that has since been
// replaced.
package indicator

import (
	"log/slog"
	"sync"
	"time"

	"nodestatus-go/drivers/txchan"
	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
	"nodestatus-go/logging"
	"nodestatus-go/services/timer"
	"nodestatus-go/types"
)

type State = types.IndicatorState

// Indicator is the control surface. Create it with New and release it with
// Close. All methods are safe for concurrent use.
type Indicator struct {
	log *slog.Logger

	mu       sync.Mutex
	ch       txchan.Channel
	enc      *ws2812.Encoder
	blink    *timer.Timer
	timeout  *timer.Timer
	enabled  bool
	closed   bool
	state    State
	phase    bool // true after an odd number of ticks; odd ticks show black
	override types.Feedback
	dropped  uint32
	last     types.Color
	pushed   bool
	onPush   func(types.Color)
	watch    func(State)

	// owned is the timer service New started itself; Close closes it.
	owned timer.Service
}

type options struct {
	timers     timer.Service
	channel    txchan.Factory
	timing     ws2812.Timing
	log        *slog.Logger
	queueDepth int
	onPush     func(types.Color)
}

// Option configures New.
type Option func(*options)

// WithTimers supplies the timer service. By default the indicator starts
// its own wall-clock service and closes it on Close.
func WithTimers(s timer.Service) Option { return func(o *options) { o.timers = s } }

// WithChannel replaces the platform transmit channel.
func WithChannel(f txchan.Factory) Option { return func(o *options) { o.channel = f } }

func WithTiming(t ws2812.Timing) Option { return func(o *options) { o.timing = t } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithQueueDepth sets the transmit queue length in frames.
func WithQueueDepth(n int) Option { return func(o *options) { o.queueDepth = n } }

// WithPushHook observes every color handed to the channel, including
// those the channel rejects. It runs with the indicator locked and must
// not call back into it.
func WithPushHook(fn func(types.Color)) Option { return func(o *options) { o.onPush = fn } }

// New allocates the channel, the encoder and both timers, in that order,
// and enables the channel. Any failure releases what was already built
// and returns an *errcode.E whose Op names the failed step. There is no
// degraded mode: callers should treat an error as fatal.
func New(pin int, opts ...Option) (*Indicator, error) {
	o := options{
		channel: txchan.New,
		timing:  ws2812.DefaultTiming,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logging.GetLogger("indicator")
	}
	ind := &Indicator{log: o.log.With("pin", pin), onPush: o.onPush}
	if o.timers == nil {
		rt := timer.New()
		o.timers, ind.owned = rt, rt
	}

	fail := func(op string, err error) (*Indicator, error) {
		ind.Close()
		return nil, &errcode.E{C: errcode.Of(err), Op: op, Err: err}
	}

	ch, err := o.channel(txchan.Config{Pin: pin, ResolutionHz: o.timing.ResolutionHz, QueueDepth: o.queueDepth})
	if err != nil {
		return fail("indicator.channel", err)
	}
	ind.ch = ch
	if ind.enc, err = ws2812.NewEncoder(o.timing); err != nil {
		return fail("indicator.encoder", err)
	}
	if err = ch.Enable(); err != nil {
		return fail("indicator.enable", err)
	}
	ind.enabled = true
	if ind.blink, err = o.timers.Create("led_blink", ind.onTick); err != nil {
		return fail("indicator.blink_timer", err)
	}
	if ind.timeout, err = o.timers.Create("led_timeout", ind.onTimeout); err != nil {
		return fail("indicator.timeout_timer", err)
	}
	ind.log.Info("indicator ready")
	return ind, nil
}

// Close stops and deletes both timers, then disables the channel, closes
// the encoder and closes the channel. Handles that were never created are
// skipped, and calling Close again is a no-op.
func (ind *Indicator) Close() {
	ind.mu.Lock()
	if ind.closed {
		ind.mu.Unlock()
		return
	}
	ind.closed = true
	if ind.blink != nil {
		_ = ind.blink.Delete()
		ind.blink = nil
	}
	if ind.timeout != nil {
		_ = ind.timeout.Delete()
		ind.timeout = nil
	}
	if ind.ch != nil && ind.enabled {
		_ = ind.ch.Disable()
		ind.enabled = false
	}
	if ind.enc != nil {
		_ = ind.enc.Close()
		ind.enc = nil
	}
	ch := ind.ch
	ind.ch = nil
	owned := ind.owned
	ind.owned = nil
	ind.mu.Unlock()

	// Outside the lock: both may wait for goroutines that call back in.
	if ch != nil {
		_ = ch.Close()
	}
	if owned != nil {
		_ = owned.Close()
	}
}

// Dropped is the number of frames the channel refused.
func (ind *Indicator) Dropped() uint32 {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.dropped
}

// Last returns the most recently pushed color.
func (ind *Indicator) Last() (types.Color, bool) {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.last, ind.pushed
}

// pushLocked sends one frame. A refused frame is counted and otherwise
// ignored; the next tick or transition repaints.
func (ind *Indicator) pushLocked(c types.Color) {
	if ind.closed || ind.ch == nil || ind.enc == nil {
		return
	}
	ind.last, ind.pushed = c, true
	if ind.onPush != nil {
		ind.onPush(c)
	}
	f := ws2812.Frame(c)
	if err := ind.ch.Transmit(ind.enc, f[:]); err != nil {
		ind.dropped++
		ind.log.Debug("frame dropped", "color", c, "err", err)
	}
}

func (ind *Indicator) armBlinkLocked(d time.Duration) {
	if err := ind.blink.StartPeriodic(d); err != nil {
		ind.log.Error("blink arm failed", "err", err)
	}
}

func (ind *Indicator) armTimeoutLocked(d time.Duration) {
	if err := ind.timeout.StartOnce(d); err != nil {
		ind.log.Error("timeout arm failed", "err", err)
	}
}

func (ind *Indicator) disarmLocked() {
	_ = ind.blink.Stop()
	_ = ind.timeout.Stop()
}
