// Package realtime pushes newly created notifications to connected recipients.
package realtime

import (
	"encoding/json"
	"sync"

	"familytree-backend/internal/changefeed"
	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
)

const (
	NotificationsTable = "notifications"

	// subscriberBuffer bounds how far a subscriber may fall behind before it is dropped.
	subscriberBuffer = 64
)

// Hub routes notification inserts from the change feed to per-user subscriptions.
type Hub struct {
	feed changefeed.Feed

	mu      sync.Mutex
	clients map[string]map[*Subscription]struct{}
	feedSub changefeed.Subscription
	stopped bool
}

// Subscription receives a user's notifications in insertion order. C is
// closed when the subscription ends, whether by Close, Hub.Stop or overflow.
type Subscription struct {
	C <-chan domain.Notification

	ch     chan domain.Notification
	hub    *Hub
	userID string
	once   sync.Once
}

func NewHub(feed changefeed.Feed) *Hub {
	return &Hub{
		feed:    feed,
		clients: make(map[string]map[*Subscription]struct{}),
	}
}

// Start begins consuming notification inserts from the feed.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.feedSub != nil || h.stopped {
		return
	}
	h.feedSub = h.feed.Subscribe(NotificationsTable, changefeed.Insert, h.handleChange)
	logger.Info("Notification hub started")
}

func (h *Hub) handleChange(c changefeed.Change) {
	var n domain.Notification
	if err := json.Unmarshal(c.New, &n); err != nil {
		logger.Error("Failed to decode notification row", "error", err)
		return
	}
	h.Deliver(n)
}

// Subscribe registers a subscription for userID. After Stop it returns an
// already-closed subscription.
func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan domain.Notification, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, hub: h, userID: userID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(ch)
		return s
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Subscription]struct{})
	}
	h.clients[userID][s] = struct{}{}
	logger.Debug("Notification subscriber registered", "userID", userID)
	return s
}

// Deliver pushes n to every subscription of its recipient. A subscriber whose
// buffer is full is dropped instead of stalling the hub.
func (h *Hub) Deliver(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.clients[n.UserID] {
		select {
		case s.ch <- n:
		default:
			logger.Warn("Dropping slow notification subscriber", "userID", n.UserID)
			h.removeLocked(s)
		}
	}
}

func (h *Hub) removeLocked(s *Subscription) {
	subs, ok := h.clients[s.userID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.ch)
	if len(subs) == 0 {
		delete(h.clients, s.userID)
	}
}

// Close ends the subscription. Safe to call repeatedly and after Hub.Stop.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		s.hub.removeLocked(s)
	})
}

// Stop detaches from the feed and closes every open subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.feedSub != nil {
		h.feedSub.Unsubscribe()
	}
	for _, subs := range h.clients {
		for s := range subs {
			close(s.ch)
		}
	}
	h.clients = nil
	logger.Info("Notification hub stopped")
}

// Connections reports the number of open subscriptions for a user.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}
