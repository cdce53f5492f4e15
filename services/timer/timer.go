// Package timer provides named one-shot and periodic timers whose
// callbacks are serialised per service.
//
// Every Start or Stop bumps a timer's arming sequence and the callback
// receives the sequence it was armed with. A callback can compare that to
// Timer.Seq to discard a firing that raced with a later re-arm.
package timer

import (
	"sync"
	"time"

	"nodestatus-go/errcode"
)

// Func is a timer callback; seq is the arming that fired.
type Func func(seq uint64)

// Service creates timers. Implementations never run two callbacks at once.
type Service interface {
	Create(name string, fn Func) (*Timer, error)
	Close() error
}

// engine schedules armed timers. Methods are called with core.mu held.
type engine interface {
	arm(t *Timer, seq uint64, d time.Duration)
	disarm(t *Timer)
}

type core struct {
	mu     sync.Mutex
	eng    engine
	closed bool
	nextID uint64
	timers map[*Timer]struct{}
}

func newCore(eng engine) *core {
	return &core{eng: eng, timers: map[*Timer]struct{}{}}
}

// Create registers a disarmed timer.
func (c *core) Create(name string, fn Func) (*Timer, error) {
	if fn == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "timer.create", Msg: "nil callback"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &errcode.E{C: errcode.Closed, Op: "timer.create", Msg: name}
	}
	c.nextID++
	t := &Timer{c: c, id: c.nextID, name: name, fn: fn}
	c.timers[t] = struct{}{}
	return t, nil
}

func (c *core) shutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	for t := range c.timers {
		c.eng.disarm(t)
		t.armed = false
		t.seq++
	}
	return true
}

// fired decides whether a firing for seq is still current, re-arms a
// periodic timer, and returns the callback to run.
func (c *core) fired(t *Timer, seq uint64) (Func, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t.deleted || !t.armed || t.seq != seq {
		return nil, false
	}
	if t.period > 0 {
		c.eng.arm(t, seq, t.period)
	} else {
		t.armed = false
	}
	return t.fn, true
}

// Timer is one named timer. All methods are safe for concurrent use.
type Timer struct {
	c    *core
	id   uint64
	name string
	fn   Func

	// guarded by c.mu
	seq     uint64
	armed   bool
	deleted bool
	period  time.Duration // 0 for one-shot

	rt  *time.Timer   // real engine
	due time.Duration // manual engine
}

func (t *Timer) Name() string { return t.name }

// StartPeriodic (re)arms t to fire every d.
func (t *Timer) StartPeriodic(d time.Duration) error { return t.start("timer.start_periodic", d, d) }

// StartOnce (re)arms t to fire once after d.
func (t *Timer) StartOnce(d time.Duration) error { return t.start("timer.start_once", d, 0) }

func (t *Timer) start(op string, d, period time.Duration) error {
	if d <= 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: t.name}
	}
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t.deleted {
		return &errcode.E{C: errcode.Closed, Op: op, Msg: t.name}
	}
	c.eng.disarm(t)
	t.seq++
	t.armed, t.period = true, period
	c.eng.arm(t, t.seq, d)
	return nil
}

// Stop disarms t. Stopping a disarmed timer is not an error.
func (t *Timer) Stop() error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t.deleted {
		return &errcode.E{C: errcode.Closed, Op: "timer.stop", Msg: t.name}
	}
	c.eng.disarm(t)
	t.seq++
	t.armed = false
	return nil
}

// Delete disarms and releases t. Deleting twice is a no-op.
func (t *Timer) Delete() error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.deleted {
		return nil
	}
	c.eng.disarm(t)
	t.seq++
	t.armed, t.deleted = false, true
	delete(c.timers, t)
	return nil
}

// Seq returns the current arming sequence.
func (t *Timer) Seq() uint64 {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.seq
}

func (t *Timer) Armed() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.armed
}
