package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// StreamNotifications holds every domain notification fanned out to clients.
const StreamNotifications = "AGENTSFLOW_NOTIFICATIONS"

// Subject layout. Per-user events publish under the user's own subject so
// relays can filter; broadcast events go to every connected client.
const (
	SubjectNotificationPrefix = "agentsflow.notifications"      // agentsflow.notifications.user.{id} | ...broadcast
	SubjectNotificationAll    = "agentsflow.notifications.>"
)

// BroadcastScope addresses every connected client rather than one user.
const BroadcastScope = "broadcast"

// EventType is the closed set of domain notification types. Anything else
// is malformed and must be rejected before it reaches subscribers.
type EventType string

const (
	EventLeadCreated         EventType = "lead_created"
	EventLeadAnalyzed        EventType = "lead_analyzed"
	EventMessageCreated      EventType = "message_created"
	EventSubscriptionCreated EventType = "subscription_created"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventConversationDeleted EventType = "conversation_deleted"
	EventNotificationCreated EventType = "notification_created"
)

var knownEventTypes = map[EventType]struct{}{
	EventLeadCreated:         {},
	EventLeadAnalyzed:        {},
	EventMessageCreated:      {},
	EventSubscriptionCreated: {},
	EventSubscriptionUpdated: {},
	EventConversationDeleted: {},
	EventNotificationCreated: {},
}

// Notification is one domain event destined for connected clients.
// Delivery is at-most-once: the relay never retries or replays.
type Notification struct {
	EventType      EventType       `json:"event_type"`
	RecipientScope string          `json:"recipient_scope"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate rejects notifications outside the closed event-type set or
// without a recipient.
func (n *Notification) Validate() error {
	if _, ok := knownEventTypes[n.EventType]; !ok {
		return fmt.Errorf("unknown event type %q", n.EventType)
	}
	if n.RecipientScope == "" {
		return fmt.Errorf("empty recipient scope")
	}
	return nil
}

// Subject returns the NATS subject this notification publishes under.
func (n *Notification) Subject() string {
	if n.RecipientScope == BroadcastScope {
		return SubjectNotificationPrefix + ".broadcast"
	}
	return SubjectNotificationPrefix + ".user." + n.RecipientScope
}
