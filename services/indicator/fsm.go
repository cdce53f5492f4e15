package indicator

import (
	"time"

	"nodestatus-go/types"
)

const (
	BlinkSlow    = 250 * time.Millisecond
	BlinkFast    = 100 * time.Millisecond
	StateTimeout = 5000 * time.Millisecond
)

// Palette.
var (
	Amber = types.Color{R: 40, G: 20, B: 0}
	Blue  = types.Color{R: 0, G: 0, B: 40}
	Green = types.Color{R: 0, G: 60, B: 0}
	Red   = types.Color{R: 60, G: 0, B: 0}
)

// SetState switches to s unconditionally: it resets the blink phase,
// disarms both timers and runs s's entry action. Re-entering the current
// state restarts it. Any feedback override ends. Unknown states are
// treated as Off. After Close it does nothing.
func (ind *Indicator) SetState(s State) {
	ind.mu.Lock()
	applied, ok := ind.setStateLocked(s)
	watch := ind.watch
	ind.mu.Unlock()
	if ok && watch != nil {
		watch(applied)
	}
}

// State returns the current state. A feedback override does not change it.
func (ind *Indicator) State() State {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.state
}

// Watch registers fn to be called after every applied transition,
// including those made by the timeout timer. fn runs without the
// indicator locked. Only one watcher is kept.
func (ind *Indicator) Watch(fn func(State)) {
	ind.mu.Lock()
	ind.watch = fn
	ind.mu.Unlock()
}

// setStateLocked returns the state actually entered, which differs from s
// when s is unknown.
func (ind *Indicator) setStateLocked(s State) (State, bool) {
	if ind.closed {
		return s, false
	}
	if s > types.StateError {
		ind.log.Warn("unknown state, using off", "state", uint8(s))
		s = types.StateOff
	}
	ind.state = s
	ind.phase = false
	ind.override = types.FeedbackOff
	ind.disarmLocked()
	ind.log.Debug("state", "state", s)

	switch s {
	case types.StateOff:
		ind.pushLocked(types.Black)
	case types.StateNotJoined, types.StatePairing:
		ind.armBlinkLocked(BlinkSlow)
	case types.StateJoined:
		ind.pushLocked(Green)
		ind.armTimeoutLocked(StateTimeout)
	case types.StateError:
		ind.armBlinkLocked(BlinkFast)
		ind.armTimeoutLocked(StateTimeout)
	}
	return s, true
}

func blinkColor(s State) (types.Color, bool) {
	switch s {
	case types.StateNotJoined:
		return Amber, true
	case types.StatePairing:
		return Blue, true
	case types.StateError:
		return Red, true
	}
	return types.Black, false
}

func (ind *Indicator) onTick(seq uint64) {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	if ind.closed || ind.blink == nil || seq != ind.blink.Seq() || ind.override != types.FeedbackOff {
		return
	}
	c, ok := blinkColor(ind.state)
	if !ok {
		return
	}
	ind.phase = !ind.phase
	if ind.phase {
		ind.pushLocked(types.Black)
	} else {
		ind.pushLocked(c)
	}
}

func (ind *Indicator) onTimeout(seq uint64) {
	ind.mu.Lock()
	if ind.closed || ind.timeout == nil || seq != ind.timeout.Seq() {
		ind.mu.Unlock()
		return
	}
	next := ind.state
	switch ind.state {
	case types.StateJoined:
		next = types.StateOff
	case types.StateError:
		next = types.StatePairing
	default:
		ind.mu.Unlock()
		return
	}
	applied, ok := ind.setStateLocked(next)
	watch := ind.watch
	ind.mu.Unlock()
	if ok && watch != nil {
		watch(applied)
	}
}

// SetFeedback shows button-hold feedback over the current state: warning
// is solid amber, critical is solid red, both with the timers disarmed.
// FeedbackOff re-enters the state that was active before the hold.
func (ind *Indicator) SetFeedback(f types.Feedback) {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	if ind.closed {
		return
	}
	switch f {
	case types.FeedbackWarning, types.FeedbackCritical:
		ind.disarmLocked()
		ind.override = f
		if f == types.FeedbackWarning {
			ind.pushLocked(Amber)
		} else {
			ind.pushLocked(Red)
		}
	default:
		if ind.override == types.FeedbackOff {
			return
		}
		ind.setStateLocked(ind.state)
	}
}
