package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Hub fans stored notifications out to the connected clients of their
// recipient. Slow clients are dropped instead of blocking publishers.
// All methods are safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

type HubOption func(*Hub)

func WithBufferSize(n int) HubOption {
	return func(h *Hub) { h.bufferSize = max(n, 1) }
}

func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  32,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one connected client of a user.
type Subscription struct {
	userID string
	ch     chan notifications.Notification
	mu     sync.RWMutex
	closed bool
}

// C delivers notifications until the subscription is closed.
func (s *Subscription) C() <-chan notifications.Notification { return s.ch }

func (s *Subscription) UserID() string { return s.userID }

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

func (s *Subscription) send(n notifications.Notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

// Subscribe registers a client for userID until ctx is done or the hub
// closes.
func (h *Hub) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	sub := &Subscription{userID: userID, ch: make(chan notifications.Notification, h.bufferSize)}
	set, ok := h.subscribers[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subscribers[userID] = set
	}
	set[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		h.unsubscribe(sub)
	}()
	return sub, nil
}

// Publish delivers n to every client of its recipient. A user with no
// connected clients is not an error; the notification stays in the inbox.
func (h *Hub) Publish(ctx context.Context, n notifications.Notification) error {
	if n.RecipientID == "" {
		return ErrMissingUser
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}

	for sub := range h.subscribers[n.RecipientID] {
		if !sub.send(n) {
			h.logger.LogAttrs(ctx, slog.LevelDebug, "dropping slow realtime subscriber",
				logger.UserID(n.RecipientID),
				logger.NotificationID(n.ID),
			)
			go h.unsubscribe(sub)
		}
	}
	return nil
}

// Subscribers returns the number of connected clients of userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close disconnects every client. It is safe to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, set := range h.subscribers {
		for sub := range set {
			sub.close()
		}
	}
	clear(h.subscribers)
	h.mu.Unlock()
	return nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subscribers[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, sub.userID)
		}
	}
	sub.close()
}
