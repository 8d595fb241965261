// Package hub fans JSON payloads out to a set of websocket subscribers.
// The dashboard runs one hub per stream (status, events); the control
// loop side only ever publishes, subscribers only ever receive.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/EngrAlegre/ALGAE-ML/internal/log"
)

// Hub owns the subscriber set for one stream. Slow subscribers are
// dropped rather than allowed to stall the publisher.
type Hub struct {
	name string

	subscribers map[*Subscriber]struct{}

	publish     chan []byte
	subscribe   chan *Subscriber
	unsubscribe chan *Subscriber

	mu sync.RWMutex
}

// New creates a hub for the named stream.
func New(name string) *Hub {
	return &Hub{
		name:        name,
		subscribers: make(map[*Subscriber]struct{}),
		publish:     make(chan []byte, 256),
		subscribe:   make(chan *Subscriber),
		unsubscribe: make(chan *Subscriber),
	}
}

// Run is the hub's main loop. Call it in a goroutine; it serializes all
// subscriber set mutations so the pumps never touch the map.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.subscribe:
			h.mu.Lock()
			h.subscribers[sub] = struct{}{}
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Debug("stream subscriber joined", "stream", h.name, "total", count)

		case sub := <-h.unsubscribe:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Debug("stream subscriber left", "stream", h.name, "remaining", count)

		case payload := <-h.publish:
			h.mu.Lock()
			for sub := range h.subscribers {
				select {
				case sub.send <- payload:
				default:
					close(sub.send)
					delete(h.subscribers, sub)
					log.Warn("dropped slow stream subscriber", "stream", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJSON encodes v and publishes it to every subscriber. A full
// publish queue drops the payload; the next one carries fresher state.
func (h *Hub) BroadcastJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.publish <- payload:
	default:
		log.Warn("publish queue full, dropping payload", "stream", h.name)
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
