package notify

import (
	"log/slog"
	"sync"

	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// Subscriber is one attached delivery target, usually a WebSocket
// connection. Send is closed by the hub on Unsubscribe; the owner must
// drain it until closed.
type Subscriber struct {
	UserID string
	Send   chan events.Notification
}

// Hub fans notifications out to live subscribers. Delivery is at most
// once: a subscriber whose buffer is full has that event dropped rather
// than stalling the others, and events arriving while nobody is attached
// go nowhere.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[string]map[*Subscriber]struct{}
	bufSize int
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		byUser:  make(map[string]map[*Subscriber]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe attaches a delivery target for userID.
func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		UserID: userID,
		Send:   make(chan events.Notification, h.bufSize),
	}

	h.mu.Lock()
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.byUser[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe detaches sub and closes its Send channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	set, ok := h.byUser[sub.UserID]
	if ok {
		if _, attached := set[sub]; attached {
			delete(set, sub)
			close(sub.Send)
		}
		if len(set) == 0 {
			delete(h.byUser, sub.UserID)
		}
	}
	h.mu.Unlock()
}

// Dispatch delivers n to its recipients: every subscriber of the scoped
// user, or every subscriber for broadcast events.
func (h *Hub) Dispatch(n events.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n.RecipientScope == events.BroadcastScope {
		for _, set := range h.byUser {
			for sub := range set {
				h.offer(sub, n)
			}
		}
		return
	}

	for sub := range h.byUser[n.RecipientScope] {
		h.offer(sub, n)
	}
}

func (h *Hub) offer(sub *Subscriber, n events.Notification) {
	select {
	case sub.Send <- n:
		metrics.NotificationsDeliveredTotal.Inc()
	default:
		metrics.NotificationsDroppedTotal.WithLabelValues("slow_consumer").Inc()
		slog.Warn("dropping notification for slow consumer",
			"user_id", sub.UserID,
			"event_type", n.EventType,
		)
	}
}

// Subscribers reports how many delivery targets userID currently has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
