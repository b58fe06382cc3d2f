// Package events fans render events out to presentation clients.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskmaster/agenda/internal/ports"
)

const subscriberBuffer = 64

// Hub is an in-process publisher with buffered subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan ports.Event]struct{}
	now     func() time.Time
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan ports.Event]struct{}),
		now:  time.Now,
	}
}

// Publish fans the event out to all subscribers. It never blocks.
func (h *Hub) Publish(e ports.Event) {
	if e.At.IsZero() {
		e.At = h.now()
	}

	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking the publisher
			h.dropped.Add(1)
		}
	}
	h.mu.RUnlock()
}

// Subscribe returns a buffered channel that receives all new events.
func (h *Hub) Subscribe() chan ports.Event {
	ch := make(chan ports.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan ports.Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
