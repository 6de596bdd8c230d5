// Package events fans newly detected opportunities out to external
// consumers: logging, reporting, archives, and the optional Kafka sink.
package events

import (
	"sync"
	"sync/atomic"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/observability"
)

// Event names exposed to consumers.
const (
	EventArbitrage   = "arbitrageOpportunity"
	EventSandwich    = "sandwichOpportunity"
	EventLiquidation = "liquidationOpportunity"
	EventCopyTrading = "copyTradingSignal"
)

// EventFor maps an opportunity kind to its event name.
func EventFor(kind domain.OpportunityKind) string {
	switch kind {
	case domain.KindArbitrage:
		return EventArbitrage
	case domain.KindSandwich:
		return EventSandwich
	case domain.KindLiquidation:
		return EventLiquidation
	case domain.KindCopyTrading:
		return EventCopyTrading
	default:
		return ""
	}
}

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 256

type subscriber struct {
	id int64
	ch chan domain.Opportunity
}

// Bus is an in-process fan-out of opportunities keyed by event name.
// Publish never blocks: a subscriber whose buffer is full misses the event,
// which is counted but otherwise ignored so a slow consumer cannot stall a
// detector tick.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	nextID int64
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscriber)}
}

// Subscribe registers for a named event and returns the delivery channel and
// an unsubscribe function. buffer <= 0 selects DefaultSubscriberBuffer.
// The channel is closed on unsubscribe or bus close.
func (b *Bus) Subscribe(event string, buffer int) (<-chan domain.Opportunity, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan domain.Opportunity)
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan domain.Opportunity, buffer)}
	b.subs[event] = append(b.subs[event], sub)

	id := sub.id
	unsubscribe := func() { b.remove(event, id) }
	return sub.ch, unsubscribe
}

func (b *Bus) remove(event string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers the opportunity to every subscriber of its event name.
func (b *Bus) Publish(op domain.Opportunity) {
	event := EventFor(op.Meta().Kind)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.published.Add(1)
	observability.RecordEventPublished()
	for _, s := range b.subs[event] {
		select {
		case s.ch <- op:
		default:
			b.dropped.Add(1)
			observability.RecordEventDropped()
		}
	}
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for event, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subs, event)
	}
}

// Stats returns counts of published and dropped deliveries.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}
