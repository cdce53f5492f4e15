package timer

import "time"

type fire struct {
	t   *Timer
	seq uint64
}

// Runtime runs timers on the wall clock. Expiries are posted to a single
// dispatch goroutine, which runs the callbacks one at a time.
type Runtime struct {
	*core
	fires chan fire
	quit  chan struct{}
	done  chan struct{}
}

var _ Service = (*Runtime)(nil)

func New() *Runtime {
	r := &Runtime{
		fires: make(chan fire, 16),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	r.core = newCore(r)
	go r.dispatch()
	return r
}

func (r *Runtime) arm(t *Timer, seq uint64, d time.Duration) {
	t.rt = time.AfterFunc(d, func() {
		select {
		case r.fires <- fire{t, seq}:
		case <-r.quit:
		}
	})
}

func (r *Runtime) disarm(t *Timer) {
	if t.rt != nil {
		t.rt.Stop()
		t.rt = nil
	}
}

func (r *Runtime) dispatch() {
	defer close(r.done)
	for {
		select {
		case f := <-r.fires:
			if fn, ok := r.fired(f.t, f.seq); ok {
				fn(f.seq)
			}
		case <-r.quit:
			return
		}
	}
}

// Close disarms every timer and stops the dispatcher. It must not be
// called from a timer callback.
func (r *Runtime) Close() error {
	if !r.shutdown() {
		return nil
	}
	close(r.quit)
	<-r.done
	return nil
}
