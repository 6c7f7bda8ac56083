package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/constants"
)

type subscription struct {
	ch      chan Event
	dropped int
}

// EventBus fans engine events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*subscription
	buffer int
	closed bool
}

// NewEventBus creates a bus whose subscriber channels hold bufferSize
// events, never fewer than MinEventBusBufferSize.
func NewEventBus(bufferSize int) *EventBus {
	return &EventBus{buffer: max(bufferSize, constants.MinEventBusBufferSize)}
}

// Subscribe registers a new subscriber. On a closed bus the returned channel
// is already closed.
func (b *EventBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{ch: make(chan Event, b.buffer)}
	if b.closed {
		close(sub.ch)
	} else {
		b.subs = append(b.subs, sub)
	}
	return sub.ch
}

// Unsubscribe removes ch and closes it.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.ch != ch {
			continue
		}
		close(sub.ch)
		b.subs = append(b.subs[:i], b.subs[i+1:]...)
		return
	}
}

// Publish delivers event to every subscriber with room for it.
func (b *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Write lock: drop counters are updated in place.
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
			log.Warn().
				Str("event", string(event.Type)).
				Int("subscriber", i).
				Int("dropped", sub.dropped).
				Msg("subscriber full, event dropped")
		}
	}
}

// Emit publishes an event built from its parts.
func (b *EventBus) Emit(typ EventType, partnerID string, data interface{}) {
	b.Publish(Event{Type: typ, PartnerID: partnerID, Data: data})
}

// Dropped returns how many events ch has missed.
func (b *EventBus) Dropped(ch <-chan Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.ch == ch {
			return sub.dropped
		}
	}
	return 0
}

// Close closes every subscriber channel. Later publishes go nowhere.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	b.closed = true
}
