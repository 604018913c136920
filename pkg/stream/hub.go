package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/metrics"
)

var (
	// ErrAlreadySubscribed is returned by Open when a session already has
	// a live subscription.
	ErrAlreadySubscribed = errors.New("session already has a subscriber")
	// ErrNoSubscriber is returned by Emit when no subscription is open.
	ErrNoSubscriber = errors.New("no subscriber for session")
	// ErrSubscriptionClosed is returned by Next after Close.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Subscription is the single per-session consumer of the event stream.
// The executor is the only producer, the delivery task the only consumer.
type Subscription struct {
	sessionID string
	capacity  int

	mu        sync.Mutex
	buf       []*AgentEvent
	closed    bool
	notify    chan struct{}
	dropped   int
	cancelled atomic.Bool
}

// Next blocks until an event is buffered, the subscription closes, or the
// context ends. Events come out in emission order.
func (s *Subscription) Next(ctx context.Context) (*AgentEvent, error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			ev := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrSubscriptionClosed
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Cancelled reports whether the client requested cancellation.
func (s *Subscription) Cancelled() bool {
	return s.cancelled.Load()
}

// Dropped returns how many events were evicted from this buffer.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) push(ev *AgentEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.buf) >= s.capacity {
		// Drop oldest. One overflow marker covers a run of evictions and
		// sits where the gap is.
		for len(s.buf) >= s.capacity {
			if s.buf[0].Status != StatusBufferOverflow {
				s.dropped++
				metrics.EventsDropped.Inc()
			}
			s.buf = s.buf[1:]
		}
		if !s.hasMarker() {
			s.buf = append([]*AgentEvent{NewEvent("", StatusBufferOverflow)}, s.buf...)
			metrics.BufferOverflows.Inc()
		}
	}
	s.buf = append(s.buf, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) hasMarker() bool {
	for _, ev := range s.buf {
		if ev.Status == StatusBufferOverflow {
			return true
		}
	}
	return false
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Hub owns the per-session subscriptions and routes emitted events.
type Hub struct {
	capacity int

	mu   sync.Mutex
	subs map[string]*Subscription

	logger *slog.Logger
}

// NewHub creates a hub with the configured per-session buffer capacity.
func NewHub(cfg *config.Config) *Hub {
	return &Hub{
		capacity: cfg.EventBufferCap,
		subs:     make(map[string]*Subscription),
		logger:   slog.With("component", "stream"),
	}
}

// Open creates the single subscription for a session.
func (h *Hub) Open(sessionID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sessionID]; ok {
		return nil, ErrAlreadySubscribed
	}
	sub := &Subscription{
		sessionID: sessionID,
		capacity:  h.capacity,
		notify:    make(chan struct{}, 1),
	}
	h.subs[sessionID] = sub
	return sub, nil
}

// Emit buffers an event for the session's subscriber without blocking.
// A full buffer evicts the oldest events and inserts one overflow marker.
func (h *Hub) Emit(sessionID string, ev *AgentEvent) error {
	h.mu.Lock()
	sub, ok := h.subs[sessionID]
	h.mu.Unlock()
	if !ok {
		return ErrNoSubscriber
	}
	sub.push(ev)
	return nil
}

// Close tears down the session's subscription. Buffered events already
// handed to Next are unaffected.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	sub, ok := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Cancel flags the session for cooperative cancellation. The executor
// observes the flag between agent steps.
func (h *Hub) Cancel(sessionID string) {
	h.mu.Lock()
	sub, ok := h.subs[sessionID]
	h.mu.Unlock()
	if ok {
		sub.cancelled.Store(true)
		h.logger.Info("Cancellation requested", "session_id", sessionID)
	}
}
