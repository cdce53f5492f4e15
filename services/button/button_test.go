package button

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"nodestatus-go/types"
)

type fakePin struct{ level atomic.Bool }

func (f *fakePin) Get() bool { return f.level.Load() }

type harness struct {
	pin      *fakePin
	p        *Poller
	feedback []types.Feedback
	network  int
	full     int
}

func newHarness(withCallbacks bool) *harness {
	h := &harness{pin: &fakePin{}}
	h.pin.level.Store(true) // released, active low
	opts := []Option{OnFeedback(func(f types.Feedback) { h.feedback = append(h.feedback, f) })}
	if withCallbacks {
		opts = append(opts,
			OnNetworkReset(func() { h.network++ }),
			OnFullReset(func() { h.full++ }))
	}
	h.p = New(h.pin, DefaultConfig(), opts...)
	return h
}

// hold presses for n polls and releases.
func (h *harness) hold(n int) {
	h.pin.level.Store(false)
	for i := 0; i < n; i++ {
		h.p.step()
	}
	h.pin.level.Store(true)
	h.p.step()
}

func TestShortPressDoesNothing(t *testing.T) {
	h := newHarness(true)
	h.hold(9)
	if len(h.feedback) != 0 || h.network != 0 || h.full != 0 {
		t.Fatalf("feedback=%v network=%d full=%d", h.feedback, h.network, h.full)
	}
}

func TestFeedbackBandThenRelease(t *testing.T) {
	h := newHarness(true)
	h.hold(12) // 1.0 s .. 1.2 s
	want := []types.Feedback{
		types.FeedbackCritical, // poll 10
		types.FeedbackWarning,  // poll 11
		types.FeedbackCritical, // poll 12
		types.FeedbackOff,      // release
	}
	if len(h.feedback) != len(want) {
		t.Fatalf("feedback=%v want %v", h.feedback, want)
	}
	for i := range want {
		if h.feedback[i] != want[i] {
			t.Fatalf("feedback=%v want %v", h.feedback, want)
		}
	}
	if h.network != 0 || h.full != 0 {
		t.Fatal("reset fired for a 1.2 s hold")
	}
}

func TestNetworkBandAlternatesSlowly(t *testing.T) {
	h := newHarness(true)
	h.pin.level.Store(false)
	for i := 0; i < 29; i++ {
		h.p.step()
	}
	h.feedback = nil
	for i := 0; i < 20; i++ { // polls 30..49
		h.p.step()
	}
	// (polls/5)%2: 30-34 critical, 35-39 warning, 40-44 critical, 45-49 warning.
	want := []types.Feedback{types.FeedbackCritical, types.FeedbackWarning, types.FeedbackCritical, types.FeedbackWarning}
	if len(h.feedback) != len(want) {
		t.Fatalf("feedback=%v want %v", h.feedback, want)
	}
	for i := range want {
		if h.feedback[i] != want[i] {
			t.Fatalf("feedback=%v want %v", h.feedback, want)
		}
	}
	h.pin.level.Store(true)
	h.p.step()
	if h.network != 1 || h.full != 0 {
		t.Fatalf("network=%d full=%d", h.network, h.full)
	}
}

func TestFullResetHoldsCritical(t *testing.T) {
	h := newHarness(true)
	h.hold(120)
	if last := h.feedback[len(h.feedback)-1]; last != types.FeedbackCritical {
		t.Fatalf("last feedback=%v want critical", last)
	}
	if h.full != 1 || h.network != 0 {
		t.Fatalf("full=%d network=%d", h.full, h.network)
	}
}

func TestMissingCallbackRestoresLED(t *testing.T) {
	h := newHarness(false)
	h.hold(35)
	if last := h.feedback[len(h.feedback)-1]; last != types.FeedbackOff {
		t.Fatalf("last feedback=%v want off", last)
	}
}

func TestActiveHighPin(t *testing.T) {
	pin := &fakePin{}
	var network int
	cfg := DefaultConfig()
	cfg.ActiveLow = false
	p := New(pin, cfg, OnNetworkReset(func() { network++ }))
	pin.level.Store(true)
	for i := 0; i < 30; i++ {
		p.step()
	}
	pin.level.Store(false)
	p.step()
	if network != 1 {
		t.Fatalf("network=%d want 1", network)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	pin := &fakePin{}
	pin.level.Store(false) // held from the start
	fired := make(chan types.Feedback, 64)
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.FeedbackAfter = 5 * time.Millisecond
	p := New(pin, cfg, OnFeedback(func(f types.Feedback) {
		select {
		case fired <- f:
		default:
		}
	}))

	p.Start(context.Background())
	p.Start(context.Background())
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("no feedback from running poller")
	}
	p.Stop()
	p.Stop()
}
