// Package bus is the in-process publish/subscribe broker that decouples
// schedule mutations, job firings and display status transitions from the
// components that react to them. It is intentionally not durable: no
// persistence, no replay, no cross-process fan-out.
package bus

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event is a named payload flowing through the broker.
type Event struct {
	Topic   string
	Payload any
}

// Handler consumes one event. Handlers run on the subscriber's own
// goroutine; a panic is recovered and logged so one consumer cannot
// suppress delivery to others.
type Handler func(Event)

type subscriber struct {
	topic string
	ch    chan Event
}

// Bus delivers events to subscribers in publication order per subscriber.
// Subscriptions are registered once at process start; Subscribe after heavy
// publishing is safe but late subscribers only see subsequent events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	wg     sync.WaitGroup
	closed bool
}

const subscriberBuffer = 256

func New() *Bus {
	return &Bus{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a handler for one topic. Each subscription drains its
// own buffered channel on a dedicated goroutine, which preserves per-event
// ordering for that consumer.
func (b *Bus) Subscribe(topic string, h Handler) {
	sub := &subscriber{topic: topic, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range sub.ch {
			deliver(h, ev)
		}
	}()
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", ev.Topic).Any("panic", r).Msg("event handler panicked")
		}
	}()
	h(ev)
}

// Publish enqueues the event for every subscriber of the topic. Delivery is
// best-effort: a subscriber whose buffer is full misses the event rather
// than blocking the publisher.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	subs := b.subs[topic]
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("topic", topic).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Close stops delivery and waits for in-flight handlers to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}
