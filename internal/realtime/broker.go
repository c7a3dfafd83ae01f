// Package realtime fans state-change events out to live subscribers.
package realtime

import (
	"encoding/json"
	"sync"

	"pingmonitor/internal/logging"
)

var logger = logging.WithPrefix("realtime")

// Event types published by the monitor.
const (
	EventHosts    = "monitored_hosts"
	EventResult   = "host_result"
	EventOnDemand = "on_demand"
)

// Event is one message pushed to subscribers.
type Event struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broker distributes encoded events to subscribers. A subscriber that falls
// behind loses events rather than blocking the publisher.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	closed  bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a channel and returns it with its cleanup function.
// After Close the returned channel is already closed.
func (b *Broker) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.clients[ch]; ok {
				delete(b.clients, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cleanup
}

// Publish broadcasts evt to every subscriber.
func (b *Broker) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.WithField("type", evt.Type).Warnf("encode event: %v", err)
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- data:
		default:
			logger.WithField("type", evt.Type).Debug("subscriber too slow, event dropped")
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
