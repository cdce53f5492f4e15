//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"nodestatus-go/bus"
	"nodestatus-go/drivers/txchan"
	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
	"nodestatus-go/services/indicator"
	"nodestatus-go/services/netstate"
	"nodestatus-go/services/timer"
	"nodestatus-go/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a script of state changes and print every frame",
	Long: `Events are "NAME@MS" separated by commas. NAME is an indicator state
(off, not_joined, pairing, joined, error) sent as an indicator/set request,
or net=STATE published on net/state.

By default time is virtual and the run finishes immediately; --realtime
uses the wall clock.`,
	Example: `  statusled-sim run --script not_joined@0,joined@600 --for 6s
  statusled-sim run --script net=commissioning@0,net=joined@2000 --realtime`,
	RunE: func(cmd *cobra.Command, args []string) error {
		script, _ := cmd.Flags().GetString("script")
		dur, _ := cmd.Flags().GetDuration("for")
		realtime, _ := cmd.Flags().GetBool("realtime")
		events, err := parseScript(script)
		if err != nil {
			return err
		}
		return simulate(cmd.Context(), cmd.OutOrStdout(), events, dur, realtime)
	},
}

func init() {
	f := runCmd.Flags()
	f.String("script", "not_joined@0,joined@600", "events to play")
	f.Duration("for", 6*time.Second, "total simulated time")
	f.Bool("realtime", false, "run on the wall clock instead of virtual time")
}

type event struct {
	at   time.Duration
	name string
	net  bool
}

func (e event) String() string {
	if e.net {
		return "net=" + e.name
	}
	return e.name
}

func parseScript(s string) ([]event, error) {
	var out []event
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, at, ok := strings.Cut(tok, "@")
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: "missing @MS in " + tok}
		}
		ms, err := strconv.ParseUint(at, 10, 32)
		if err != nil {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: tok, Err: err}
		}
		ev := event{at: time.Duration(ms) * time.Millisecond, name: name}
		if n, ok := strings.CutPrefix(name, "net="); ok {
			if _, known := netstate.StateFor(types.NetState(n)); !known {
				return nil, &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: "unknown net state " + n}
			}
			ev.name, ev.net = n, true
		} else if _, known := types.ParseIndicatorState(name); !known {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: "unknown state " + name}
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out, nil
}

func colorName(c types.Color) string {
	switch c {
	case types.Black:
		return "black"
	case indicator.Amber:
		return "amber"
	case indicator.Blue:
		return "blue"
	case indicator.Green:
		return "green"
	case indicator.Red:
		return "red"
	}
	return "custom"
}

// clock abstracts virtual and wall time for the run loop.
type clock interface {
	now() time.Duration
	sleepUntil(t time.Duration)
}

type virtualClock struct{ m *timer.Manual }

func (v virtualClock) now() time.Duration { return v.m.Now() }
func (v virtualClock) sleepUntil(t time.Duration) {
	if d := t - v.m.Now(); d > 0 {
		v.m.Advance(d)
	}
}

type wallClock struct{ start time.Time }

func (w wallClock) now() time.Duration { return time.Since(w.start) }
func (w wallClock) sleepUntil(t time.Duration) {
	if d := t - time.Since(w.start); d > 0 {
		time.Sleep(d)
	}
}

func simulate(ctx context.Context, out io.Writer, events []event, total time.Duration, realtime bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var svc timer.Service
	var clk clock
	if realtime {
		rt := timer.New()
		defer rt.Close()
		svc, clk = rt, wallClock{start: time.Now()}
	} else {
		m := timer.NewManual()
		svc, clk = m, virtualClock{m: m}
	}

	var outMu sync.Mutex
	say := func(format string, args ...any) {
		outMu.Lock()
		fmt.Fprintf(out, format, args...)
		outMu.Unlock()
	}

	var mu sync.Mutex
	var loop *txchan.Loopback
	var badFrames int
	factory := func(cfg txchan.Config) (txchan.Channel, error) {
		l, err := txchan.NewLoopback(cfg, txchan.WithSink(func(tx txchan.Transmission) {
			b, err := ws2812.Decode(tx.Symbols, tx.ResolutionHz)
			if err != nil || len(b) != ws2812.FrameLen || [3]byte{b[0], b[1], b[2]} != tx.Frame {
				mu.Lock()
				badFrames++
				mu.Unlock()
			}
		}))
		loop = l
		return l, err
	}
	hook := func(c types.Color) {
		f := ws2812.Frame(c)
		say("%8s  grb=%02x%02x%02x  %s\n", fmtMs(clk.now()), f[0], f[1], f[2], colorName(c))
	}

	ind, err := indicator.New(nodeCfg.LED.Pin,
		indicator.WithTimers(svc),
		indicator.WithChannel(factory),
		indicator.WithQueueDepth(nodeCfg.LED.QueueDepth),
		indicator.WithPushHook(hook),
	)
	if err != nil {
		return err
	}

	b := bus.NewBus(16)
	netstate.New(ind, netstate.WithRefresh(0)).Start(ctx, b.NewConnection("netstate"))
	conn := b.NewConnection("sim")
	status := conn.Subscribe(netstate.TopicIndicatorState)
	<-status.Channel() // service is up once its first status arrives

	for _, ev := range events {
		clk.sleepUntil(ev.at)
		say("%8s  -> %s\n", fmtMs(clk.now()), ev)
		if err := play(ctx, conn, status, ev); err != nil {
			ind.Close()
			return err
		}
	}
	clk.sleepUntil(total)
	ind.Close()

	sent, dropped := loop.Stats()
	mu.Lock()
	defer mu.Unlock()
	say("frames sent=%d dropped=%d decode_errors=%d final=%s\n", sent, dropped, badFrames, ind.State())
	if badFrames > 0 {
		return &errcode.E{C: errcode.InvalidPayload, Op: "sim", Msg: "wire frames did not decode"}
	}
	return nil
}

// play applies one event and waits until the indicator has taken it.
func play(ctx context.Context, conn *bus.Connection, status *bus.Subscription, ev event) error {
	for drained := false; !drained; {
		select {
		case <-status.Channel():
		default:
			drained = true
		}
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if !ev.net {
		reply, err := conn.RequestWait(wctx, conn.NewMessage(netstate.TopicIndicatorSet, ev.name, false))
		if err != nil {
			return err
		}
		if r, ok := reply.Payload.(types.ErrorReply); ok {
			return &errcode.E{C: errcode.Code(r.Error), Op: "indicator/set", Msg: ev.name}
		}
		return nil
	}
	want, _ := netstate.StateFor(types.NetState(ev.name))
	conn.Publish(conn.NewMessage(netstate.TopicNetState, types.NetState(ev.name), false))
	for {
		select {
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.IndicatorStatus); ok && st.State == want {
				return nil
			}
		case <-wctx.Done():
			return &errcode.E{C: errcode.Timeout, Op: "net/state", Msg: ev.name}
		}
	}
}

func fmtMs(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
