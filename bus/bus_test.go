package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"nodestatus-go/errcode"
)

func recv(t *testing.T, sub *Subscription) *Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(time.Second):
		t.Fatalf("nothing delivered on %v", sub.Topic())
		return nil
	}
}

func pending(sub *Subscription) int { return len(sub.ch) }

func TestRouting(t *testing.T) {
	cases := []struct {
		name    string
		pattern Topic
		topic   Topic
		match   bool
	}{
		{"exact", T("net", "state"), T("net", "state"), true},
		{"exact mismatch", T("net", "state"), T("net", "cmd"), false},
		{"single mid", T("kv", Single, "get"), T("kv", "node", "get"), true},
		{"single needs a token", T("net", Single), T("net"), false},
		{"multi zero trailing", T("net", Multi), T("net"), true},
		{"multi deep", T("config", Multi), T("config", "node", "led"), true},
		{"multi root", T(Multi), T("indicator", "state"), true},
		{"int token", T("led", 8, "state"), T("led", 8, "state"), true},
		{"int vs string token", T("led", 8), T("led", "8"), false},
		{"int vs uint8 token", T("led", 8), T("led", uint8(8)), false},
		{"single over int", T("led", Single), T("led", 12), true},
		{"longer topic", T("net"), T("net", "state"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBus(4)
			c := b.NewConnection("c")
			sub := c.Subscribe(tc.pattern)
			c.Publish(c.NewMessage(tc.topic, "x", false))
			if got := pending(sub) == 1; got != tc.match {
				t.Fatalf("pattern %v topic %v matched=%v want %v", tc.pattern, tc.topic, got, tc.match)
			}
		})
	}
}

func TestRetainedReplayThroughWildcards(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("pub")
	c.Publish(c.NewMessage(T("net", "state"), "joined", true))
	c.Publish(c.NewMessage(T("indicator", "state"), "joined", true))
	c.Publish(c.NewMessage(T("config", "node", "led"), 8, true))
	c.Publish(c.NewMessage(T("net", "cmd"), "leave", false))

	cases := []struct {
		pattern Topic
		want    int
	}{
		{T(Single, "state"), 2},
		{T("config", Multi), 1},
		{T(Multi), 3},
		{T("net", Single), 1},
		{T("config", "node"), 0},
	}
	for _, tc := range cases {
		sub := c.Subscribe(tc.pattern)
		if n := pending(sub); n != tc.want {
			t.Errorf("%v replayed %d retained, want %d", tc.pattern, n, tc.want)
		}
		for i := 0; i < tc.want; i++ {
			if m := recv(t, sub); !m.Retained {
				t.Errorf("%v replayed non-retained %v", tc.pattern, m.Topic)
			}
		}
	}
}

func TestRetainedOverwriteKeepsLatest(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("c")
	c.Publish(c.NewMessage(T("indicator", "state"), "pairing", true))
	c.Publish(c.NewMessage(T("indicator", "state"), "joined", true))
	sub := c.Subscribe(T("indicator", "state"))
	if n := pending(sub); n != 1 {
		t.Fatalf("replayed %d, want 1", n)
	}
	if m := recv(t, sub); m.Payload != "joined" {
		t.Fatalf("payload=%v want joined", m.Payload)
	}
}

func TestClearingRetainedPrunesTrie(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("c")
	c.Publish(c.NewMessage(T("config", "node", "led"), 8, true))
	c.Publish(c.NewMessage(T("config", "node"), "default", true))

	c.Publish(c.NewMessage(T("config", "node", "led"), nil, true))
	node := b.retained.children["config"].children["node"]
	if node.msg == nil || len(node.children) != 0 {
		t.Fatalf("clearing a leaf should keep its retained parent only: %+v", node)
	}

	c.Publish(c.NewMessage(T("config", "node"), nil, true))
	if len(b.retained.children) != 0 {
		t.Fatalf("retained trie not pruned: %v", b.retained.children)
	}

	c.Publish(c.NewMessage(T("never", "set"), nil, true))
	if len(b.retained.children) != 0 {
		t.Fatal("clearing an unknown topic created nodes")
	}
	if n := pending(c.Subscribe(T(Multi))); n != 0 {
		t.Fatalf("cleared messages replayed: %d", n)
	}
}

func TestUnsubscribePrunesAndClosesOnce(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("c")
	keep := c.Subscribe(T("kv", Single))
	sub := c.Subscribe(T("kv", "node", 3))

	sub.Unsubscribe()
	sub.Unsubscribe()
	if _, ok := <-sub.Channel(); ok {
		t.Fatal("channel still open after unsubscribe")
	}
	kv := b.subs.children["kv"]
	if _, ok := kv.children["node"]; ok {
		t.Fatal("empty branch left behind")
	}
	if len(kv.children[Single].subs) != 1 {
		t.Fatal("sibling subscription removed")
	}

	c.Disconnect()
	if _, ok := <-keep.Channel(); ok {
		t.Fatal("disconnect left a subscription open")
	}
	if len(b.subs.children) != 0 {
		t.Fatalf("subscription trie not pruned: %v", b.subs.children)
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("c")
	sub := c.Subscribe(T("button", "feedback"))
	for _, p := range []string{"warning", "critical", "off"} {
		c.Publish(c.NewMessage(T("button", "feedback"), p, false))
	}
	for _, want := range []string{"critical", "off"} {
		if m := recv(t, sub); m.Payload != want {
			t.Fatalf("payload=%v want %s", m.Payload, want)
		}
	}
}

func serve(t *testing.T, b *Bus, topic Topic, handle func(c *Connection, req *Message)) {
	t.Helper()
	c := b.NewConnection("server")
	sub := c.Subscribe(topic)
	t.Cleanup(c.Disconnect)
	go func() {
		for req := range sub.Channel() {
			handle(c, req)
		}
	}()
}

func TestRequestWaitGetsReply(t *testing.T) {
	b := NewBus(4)
	serve(t, b, T("kv", "get"), func(c *Connection, req *Message) {
		c.Reply(req, uint32(7), false)
	})
	c := b.NewConnection("client")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req := c.NewMessage(T("kv", "get"), "boot_count", false)
	reply, err := c.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("RequestWait: %v", err)
	}
	if reply.Payload != uint32(7) {
		t.Fatalf("reply=%v", reply.Payload)
	}
	if len(req.ReplyTo) != 3 || req.ReplyTo[0] != "_reply" || req.ReplyTo[1] != "client" {
		t.Fatalf("reply topic=%v", req.ReplyTo)
	}
	if _, ok := req.ReplyTo[2].(uint64); !ok {
		t.Fatalf("reply sequence token is %T", req.ReplyTo[2])
	}
	b.mu.Lock()
	_, left := b.subs.children["_reply"]
	b.mu.Unlock()
	if left {
		t.Fatal("reply subscription not removed")
	}
}

func TestRequestWaitTimesOut(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("client")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.RequestWait(ctx, c.NewMessage(T("indicator", "set"), "error", false))
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err=%v want timeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v does not wrap the deadline", err)
	}
}

func TestRequestWaitClosedByDisconnect(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("client")
	serve(t, b, T("net", "cmd"), func(_ *Connection, _ *Message) {
		c.Disconnect()
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.RequestWait(ctx, c.NewMessage(T("net", "cmd"), "leave", false))
	if errcode.Of(err) != errcode.Closed {
		t.Fatalf("err=%v want closed", err)
	}
}

func TestReplyWithoutReplyToIsIgnored(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("c")
	all := c.Subscribe(T(Multi))
	c.Reply(c.NewMessage(T("indicator", "set"), "off", false), "ok", false)
	c.Reply(nil, "ok", false)
	if n := pending(all); n != 0 {
		t.Fatalf("%d messages published", n)
	}
}

func TestTRejectsUncomparableTokens(t *testing.T) {
	for _, tok := range []any{nil, []byte("x"), map[string]int{}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("T accepted %T", tok)
				}
			}()
			T("led", tok)
		}()
	}
}
