package timex

import (
	"testing"
	"time"
)

func TestTicksRoundTrip(t *testing.T) {
	const hz = 10_000_000
	if got := TickNs(hz); got != 100 {
		t.Fatalf("TickNs=%d want 100", got)
	}
	tests := []struct{ ns, ticks uint32 }{
		{400, 4},
		{800, 8},
		{449, 4},
		{450, 5},
		{50_000, 500},
	}
	for _, tt := range tests {
		if got := Ticks(tt.ns, hz); got != tt.ticks {
			t.Fatalf("Ticks(%d)=%d want %d", tt.ns, got, tt.ticks)
		}
	}
	if got := Ns(8, hz); got != 800 {
		t.Fatalf("Ns(8)=%d want 800", got)
	}
	if got := TickNs(0); got != 1_000_000_000 {
		t.Fatalf("TickNs(0)=%d", got)
	}
}

func TestMs(t *testing.T) {
	if got := Ms(250 * time.Millisecond); got != 250 {
		t.Fatalf("Ms=%d want 250", got)
	}
	if got := Ms(-time.Second); got != 0 {
		t.Fatalf("Ms(negative)=%d want 0", got)
	}
}
