package realtime

import (
	"context"
	"log"
	"sync"
)

// Hub fans deltas out to in-process subscribers. A subscriber that cannot keep
// up is dropped; its channel closes and the client is expected to resync.
type Hub struct {
	buffer int
	logger *log.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

type Subscription struct {
	TeamID string

	ch   chan Delta
	once sync.Once
}

// Deltas is closed when the subscription ends.
func (s *Subscription) Deltas() <-chan Delta {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{buffer: buffer, logger: logger, subs: map[*Subscription]struct{}{}}
}

func (h *Hub) Subscribe(teamID string) *Subscription {
	sub := &Subscription{TeamID: teamID, ch: make(chan Delta, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.close()
}

// Publish never blocks on a subscriber.
func (h *Hub) Publish(_ context.Context, d Delta) error {
	var slow []*Subscription
	h.mu.RLock()
	for sub := range h.subs {
		if sub.TeamID != d.TeamID {
			continue
		}
		select {
		case sub.ch <- d:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Printf("realtime: dropping slow subscriber for team %s", sub.TeamID)
		h.Unsubscribe(sub)
	}
	return nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
