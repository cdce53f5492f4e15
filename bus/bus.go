// Package bus is a small in-process pub/sub broker.
//
// Topics are token paths. Subscriptions may use "+" to match exactly one
// token and "#" (last position only) to match zero or more trailing
// tokens. A retained message is stored per topic and replayed to new
// matching subscribers; publishing a retained nil payload clears it.
// Delivery never blocks: a full subscriber queue loses its oldest message.
package bus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"nodestatus-go/errcode"
)

const (
	Single = "+"
	Multi  = "#"
)

// Topic is a sequence of comparable tokens, usually strings.
type Topic []any

// T builds a Topic. It panics on a token that cannot be a map key.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	return Topic(tokens)
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
	once  sync.Once
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[any]*node
	subs     []*Subscription
}

type retainedNode struct {
	children map[any]*retainedNode
	msg      *Message
}

type Bus struct {
	mu       sync.Mutex
	subs     node
	retained retainedNode
	qLen     int
	replySeq atomic.Uint64
}

// NewBus creates a bus whose subscriptions buffer queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{qLen: queueLen}
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscription and updates the
// retained store when msg.Retained is set.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Retained {
		b.retain(msg)
	}
	b.deliver(&b.subs, msg, 0)
}

func (b *Bus) deliver(n *node, msg *Message, i int) {
	if h := n.children[Multi]; h != nil {
		for _, s := range h.subs {
			send(s, msg)
		}
	}
	if i == len(msg.Topic) {
		for _, s := range n.subs {
			send(s, msg)
		}
		return
	}
	if c := n.children[msg.Topic[i]]; c != nil {
		b.deliver(c, msg, i+1)
	}
	if c := n.children[Single]; c != nil {
		b.deliver(c, msg, i+1)
	}
}

// send drops the oldest queued message when the queue is full.
func send(s *Subscription, msg *Message) {
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (b *Bus) retain(msg *Message) {
	n := &b.retained
	path := []*retainedNode{n}
	for _, tok := range msg.Topic {
		if n.children == nil {
			if msg.Payload == nil {
				return
			}
			n.children = map[any]*retainedNode{}
		}
		c := n.children[tok]
		if c == nil {
			if msg.Payload == nil {
				return
			}
			c = &retainedNode{}
			n.children[tok] = c
		}
		n = c
		path = append(path, n)
	}
	if msg.Payload != nil {
		n.msg = msg
		return
	}
	n.msg = nil
	for i := len(msg.Topic); i > 0; i-- {
		c := path[i]
		if c.msg != nil || len(c.children) > 0 {
			break
		}
		delete(path[i-1].children, msg.Topic[i-1])
	}
}

func collectRetained(n *retainedNode, pattern Topic, i int, out []*Message) []*Message {
	if i == len(pattern) {
		if n.msg != nil {
			out = append(out, n.msg)
		}
		return out
	}
	switch pattern[i] {
	case Multi:
		return collectAll(n, out)
	case Single:
		for _, c := range n.children {
			out = collectRetained(c, pattern, i+1, out)
		}
		return out
	}
	if c := n.children[pattern[i]]; c != nil {
		out = collectRetained(c, pattern, i+1, out)
	}
	return out
}

func collectAll(n *retainedNode, out []*Message) []*Message {
	if n.msg != nil {
		out = append(out, n.msg)
	}
	for _, c := range n.children {
		out = collectAll(c, out)
	}
	return out
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := &b.subs
	for _, tok := range sub.topic {
		if n.children == nil {
			n.children = map[any]*node{}
		}
		c := n.children[tok]
		if c == nil {
			c = &node{}
			n.children[tok] = c
		}
		n = c
	}
	n.subs = append(n.subs, sub)
	for _, m := range collectRetained(&b.retained, sub.topic, 0, nil) {
		send(sub, m)
	}
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := &b.subs
	path := []*node{n}
	for _, tok := range sub.topic {
		c := n.children[tok]
		if c == nil {
			return
		}
		n = c
		path = append(path, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	for i := len(sub.topic); i > 0; i-- {
		c := path[i]
		if len(c.subs) > 0 || len(c.children) > 0 {
			break
		}
		delete(path[i-1].children, sub.topic[i-1])
	}
}

// Connection groups the subscriptions of one client.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers topic (which may contain wildcards). Matching
// retained messages are queued before Subscribe returns.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes sub and closes its channel. Repeat calls are no-ops.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.release(sub)
}

func (c *Connection) release(sub *Subscription) {
	sub.once.Do(func() {
		c.bus.removeSubscription(sub)
		close(sub.ch)
	})
}

// Disconnect closes every subscription of c.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.release(s)
	}
}

// Request assigns msg a private reply topic, subscribes to it and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = T("_reply", c.id, c.bus.replySeq.Add(1))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and waits for the first reply or ctx.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case r, ok := <-sub.Channel():
		if !ok {
			return nil, &errcode.E{C: errcode.Closed, Op: "bus.request"}
		}
		return r, nil
	case <-ctx.Done():
		return nil, &errcode.E{C: errcode.Timeout, Op: "bus.request", Err: ctx.Err()}
	}
}

// Reply answers req on its ReplyTo topic. Requests without one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if req == nil || len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
