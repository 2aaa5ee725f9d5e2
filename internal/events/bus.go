// Package events carries the coordinator's higher-level notifications to
// presentation-layer subscribers over a channel-based pub-sub bus.
package events

import (
	"sync"
)

// Subscription is a live bus subscription. Events arrive on C; call
// Unsubscribe when done to release the channel.
type Subscription struct {
	C <-chan Event

	bus   *Bus
	topic string // empty for all-topic subscriptions
	ch    chan Event
	once  sync.Once
}

// Unsubscribe removes the subscription from the bus and closes C.
// Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
	s.once.Do(func() { close(s.ch) })
}

// Bus is a topic-based pub-sub event bus. Publishing never blocks: a
// subscriber whose channel is full misses that event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription // topic -> subscriptions
	all    []*Subscription
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]*Subscription),
	}
}

// Subscribe creates a subscription to a single topic. bufSize defaults to
// 256 when non-positive.
func (b *Bus) Subscribe(topic string, bufSize int) *Subscription {
	return b.add(topic, bufSize)
}

// SubscribeAll creates a subscription receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) *Subscription {
	return b.add("", bufSize)
}

func (b *Bus) add(topic string, bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = 256
	}

	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, bus: b, topic: topic, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}

	if topic == "" {
		b.all = append(b.all, sub)
	} else {
		b.subs[topic] = append(b.subs[topic], sub)
	}
	return sub
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if sub.topic == "" {
		b.all = withoutSub(b.all, sub)
	} else {
		b.subs[sub.topic] = withoutSub(b.subs[sub.topic], sub)
	}
}

func withoutSub(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// Publish sends an event to every subscriber of the topic and every
// all-topic subscriber. Full subscriber channels drop the event.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	for _, sub := range b.all {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close closes the bus and every subscriber channel. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	for _, sub := range b.all {
		sub.once.Do(func() { close(sub.ch) })
	}
}
