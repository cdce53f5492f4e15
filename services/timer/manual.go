package timer

import (
	"sync"
	"time"
)

// Manual is a Service driven by a virtual clock. Nothing fires until
// Advance is called; callbacks then run on the caller's goroutine in due
// order (creation order breaks ties).
type Manual struct {
	*core
	adv sync.Mutex // serialises Advance
	now time.Duration
}

var _ Service = (*Manual)(nil)

func NewManual() *Manual {
	m := &Manual{}
	m.core = newCore(m)
	return m
}

func (m *Manual) arm(t *Timer, _ uint64, d time.Duration) { t.due = m.now + d }
func (m *Manual) disarm(*Timer)                          {}

// Now is the virtual time elapsed since NewManual.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d, firing every timer that falls due
// on the way. Callbacks may re-arm or stop timers, including themselves.
func (m *Manual) Advance(d time.Duration) {
	m.adv.Lock()
	defer m.adv.Unlock()

	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		var next *Timer
		for t := range m.timers {
			if !t.armed || t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.id < next.id) {
				next = t
			}
		}
		if next == nil || m.closed {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		seq := next.seq
		m.mu.Unlock()

		if fn, ok := m.fired(next, seq); ok {
			fn(seq)
		}
	}
}

func (m *Manual) Close() error {
	m.shutdown()
	return nil
}
