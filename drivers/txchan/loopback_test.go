//go:build !tinygo

package txchan

import (
	"errors"
	"testing"
	"time"

	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/errcode"
	"nodestatus-go/types"
)

func newEnc(t *testing.T) *ws2812.Encoder {
	t.Helper()
	enc, err := ws2812.NewEncoder(ws2812.DefaultTiming)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return enc
}

func TestLoopbackDeliversDecodableSymbols(t *testing.T) {
	got := make(chan Transmission, 1)
	l, err := NewLoopback(Config{Pin: 8}, WithSink(func(tx Transmission) { got <- tx }))
	if err != nil {
		t.Fatalf("NewLoopback: %v", err)
	}
	defer l.Close()
	enc := newEnc(t)
	if err := l.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	f := ws2812.Frame(types.Color{R: 40, G: 20})
	if err := l.Transmit(enc, f[:]); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	select {
	case tx := <-got:
		if tx.Pin != 8 || tx.Frame != f {
			t.Fatalf("tx=%+v", tx)
		}
		if len(tx.Symbols) != ws2812.SymbolsPerFrame {
			t.Fatalf("symbols=%d want %d", len(tx.Symbols), ws2812.SymbolsPerFrame)
		}
		b, err := ws2812.Decode(tx.Symbols, tx.ResolutionHz)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if [3]byte{b[0], b[1], b[2]} != f {
			t.Fatalf("decoded %v want %v", b, f)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for transmission")
	}
}

func TestLoopbackBusyWhenQueueFull(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	l, err := NewLoopback(Config{Pin: 1, QueueDepth: 1}, WithSink(func(Transmission) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}))
	if err != nil {
		t.Fatalf("NewLoopback: %v", err)
	}
	enc := newEnc(t)
	_ = l.Enable()
	f := ws2812.Frame(types.Color{B: 40})

	if err := l.Transmit(enc, f[:]); err != nil {
		t.Fatalf("first Transmit: %v", err)
	}
	<-entered // worker holds frame 1
	if err := l.Transmit(enc, f[:]); err != nil {
		t.Fatalf("second Transmit: %v", err)
	}
	if err := l.Transmit(enc, f[:]); !errors.Is(err, errcode.Busy) {
		t.Fatalf("third Transmit err=%v want busy", err)
	}
	close(release)
	_ = l.Close()

	sent, dropped := l.Stats()
	if sent != 2 || dropped != 1 {
		t.Fatalf("sent=%d dropped=%d want 2/1", sent, dropped)
	}
}

func TestLoopbackLifecycleErrors(t *testing.T) {
	l, err := NewLoopback(Config{Pin: 2})
	if err != nil {
		t.Fatalf("NewLoopback: %v", err)
	}
	enc := newEnc(t)
	f := ws2812.Frame(types.Black)

	if err := l.Transmit(enc, f[:]); !errors.Is(err, errcode.NotReady) {
		t.Fatalf("disabled Transmit err=%v want not_ready", err)
	}
	_ = l.Enable()
	if err := l.Transmit(enc, []byte{1, 2}); errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("short frame err=%v", err)
	}
	_ = enc.Close()
	if err := l.Transmit(enc, f[:]); !errors.Is(err, errcode.Closed) {
		t.Fatalf("closed encoder err=%v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := l.Enable(); !errors.Is(err, errcode.Closed) {
		t.Fatalf("Enable after close err=%v", err)
	}
	if _, ok := l.Last(); ok {
		t.Fatal("nothing should have been sent")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want errcode.Code
	}{
		{"negative pin", Config{Pin: -1}, errcode.UnknownPin},
		{"tiny memory", Config{Pin: 0, MemSymbols: 8}, errcode.InvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			if errcode.Of(err) != tc.want {
				t.Fatalf("err=%v want %s", err, tc.want)
			}
		})
	}
}

func TestQueueDepthDefaultsAndClamp(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 4},
		{-3, 4},
		{1, 1},
		{MaxQueueDepth, MaxQueueDepth},
		{1000, MaxQueueDepth},
	}
	for _, tc := range cases {
		if got := (Config{QueueDepth: tc.in}).withDefaults().QueueDepth; got != tc.want {
			t.Fatalf("QueueDepth %d -> %d want %d", tc.in, got, tc.want)
		}
	}
}
