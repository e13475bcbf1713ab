package inapp

import (
	"context"
	"sync"
)

// Hub is an in-memory Publisher that fans events out to per-user
// subscriptions. Slow consumers lose events rather than blocking Publish.
// All methods are safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	bufferSize  int
	closed      bool
	cleanupWg   sync.WaitGroup
}

// Subscription receives the events of a single user.
type Subscription struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// Events returns the channel delivering the subscribed user's events. The
// channel is closed when the subscription or the hub closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close closes the subscription. Idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

func (s *Subscription) send(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// Buffer full: drop instead of blocking the publisher.
	}
}

// NewHub creates a hub whose subscriptions buffer up to bufferSize events.
// A minimum buffer of 1 is enforced so sends stay non-blocking.
func NewHub(bufferSize int) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers for the events of one user. The subscription is cleaned
// up when ctx is cancelled or Close is called on it.
func (h *Hub) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{ch: make(chan Event, h.bufferSize)}
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[*Subscription]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}

	if ctx.Done() != nil {
		h.cleanupWg.Add(1)
		go func() {
			defer h.cleanupWg.Done()
			<-ctx.Done()
			h.unsubscribe(userID, sub)
		}()
	}

	return sub, nil
}

// Publish delivers the event to every subscription of the event's user.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}
	for sub := range h.subscribers[event.UserID] {
		sub.send(event)
	}
	return nil
}

// Close shuts down the hub and closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, subs := range h.subscribers {
		for sub := range subs {
			sub.Close()
		}
	}
	h.subscribers = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(userID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[userID]; ok {
		if _, found := subs[sub]; found {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
			sub.Close()
		}
	}
}
