// Package netstate connects the mesh stack's reports on the bus to the
// status indicator and republishes what the indicator shows.
package netstate

import (
	"context"
	"log/slog"
	"time"

	"nodestatus-go/bus"
	"nodestatus-go/errcode"
	"nodestatus-go/logging"
	"nodestatus-go/types"
	"nodestatus-go/x/timex"
)

var (
	TopicNetState       = bus.T("net", "state")
	TopicIndicatorSet   = bus.T("indicator", "set")
	TopicIndicatorState = bus.T("indicator", "state")
)

// Indicator is the part of the indicator this service drives.
type Indicator interface {
	SetState(types.IndicatorState)
	State() types.IndicatorState
}

// watcher is implemented by indicators that report their own transitions
// (for example timeouts).
type watcher interface {
	Watch(func(types.IndicatorState))
}

// StateFor maps a network report to the indicator state showing it.
func StateFor(n types.NetState) (types.IndicatorState, bool) {
	switch n {
	case types.NetUnprovisioned, types.NetLeft:
		return types.StateNotJoined, true
	case types.NetCommissioning:
		return types.StatePairing, true
	case types.NetJoined:
		return types.StateJoined, true
	case types.NetError:
		return types.StateError, true
	case types.NetOff:
		return types.StateOff, true
	}
	return types.StateOff, false
}

type Option func(*Service)

// WithRefresh republishes the retained status every d. Zero disables it.
func WithRefresh(d time.Duration) Option { return func(s *Service) { s.refresh = d } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

type Service struct {
	ind     Indicator
	log     *slog.Logger
	refresh time.Duration
	applied chan types.IndicatorState
	watched bool
}

// New binds the service to ind. If ind reports its own transitions they
// are published as well.
func New(ind Indicator, opts ...Option) *Service {
	s := &Service{ind: ind, refresh: 30 * time.Second, applied: make(chan types.IndicatorState, 4)}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logging.GetLogger("netstate")
	}
	if w, ok := ind.(watcher); ok {
		w.Watch(s.notify)
		s.watched = true
	}
	return s
}

func (s *Service) notify(st types.IndicatorState) {
	select {
	case s.applied <- st:
	default:
		s.log.Debug("status backlog full", "state", st)
	}
}

// Start subscribes on conn and runs the service loop until ctx is
// cancelled. Messages published after Start returns are seen.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	netSub := conn.Subscribe(TopicNetState)
	setSub := conn.Subscribe(TopicIndicatorSet)
	go s.loop(ctx, conn, netSub, setSub)
}

func (s *Service) loop(ctx context.Context, conn *bus.Connection, netSub, setSub *bus.Subscription) {
	defer conn.Unsubscribe(netSub)
	defer conn.Unsubscribe(setSub)

	var tick <-chan time.Time
	if s.refresh > 0 {
		t := time.NewTicker(s.refresh)
		defer t.Stop()
		tick = t.C
	}
	s.publish(conn, s.ind.State())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping")
			return
		case msg := <-netSub.Channel():
			s.onNetState(conn, msg)
		case msg := <-setSub.Channel():
			s.onSet(conn, msg)
		case st := <-s.applied:
			s.publish(conn, st)
		case <-tick:
			s.publish(conn, s.ind.State())
		}
	}
}

func (s *Service) apply(conn *bus.Connection, st types.IndicatorState) {
	s.ind.SetState(st)
	if !s.watched {
		s.publish(conn, st)
	}
}

func (s *Service) onNetState(conn *bus.Connection, msg *bus.Message) {
	var n types.NetState
	switch p := msg.Payload.(type) {
	case types.NetState:
		n = p
	case string:
		n = types.NetState(p)
	default:
		s.log.Warn("net state payload ignored", "payload", p)
		return
	}
	st, ok := StateFor(n)
	if !ok {
		s.log.Warn("unknown net state", "net", string(n))
		return
	}
	s.log.Info("net state", "net", string(n), "indicator", st)
	s.apply(conn, st)
}

func (s *Service) onSet(conn *bus.Connection, msg *bus.Message) {
	var st types.IndicatorState
	ok := false
	switch p := msg.Payload.(type) {
	case types.IndicatorState:
		st, ok = p, p <= types.StateError
	case string:
		st, ok = types.ParseIndicatorState(p)
	}
	if !ok {
		conn.Reply(msg, types.ErrorReply{OK: false, Error: string(errcode.InvalidPayload)}, false)
		return
	}
	s.apply(conn, st)
	conn.Reply(msg, types.OKReply{OK: true}, false)
}

func (s *Service) publish(conn *bus.Connection, st types.IndicatorState) {
	conn.Publish(conn.NewMessage(TopicIndicatorState, types.IndicatorStatus{
		State: st,
		Name:  st.String(),
		TS:    timex.NowMs(),
	}, true))
}
