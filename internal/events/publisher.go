package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// Publisher validates and publishes domain notifications. Events failing
// the closed-type check are rejected here, before they can reach any
// subscriber.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends one notification. CreatedAt is stamped if unset.
func (p *Publisher) Publish(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	if _, err := p.js.Publish(ctx, n.Subject(), payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.Subject(), err)
	}

	metrics.NotificationsPublishedTotal.WithLabelValues(string(n.EventType)).Inc()
	return nil
}

// PublishToUser is shorthand for a user-scoped notification.
func (p *Publisher) PublishToUser(ctx context.Context, userID string, eventType EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	return p.Publish(ctx, Notification{
		EventType:      eventType,
		RecipientScope: userID,
		Payload:        data,
	})
}

// PublishBroadcast is shorthand for a broadcast notification.
func (p *Publisher) PublishBroadcast(ctx context.Context, eventType EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	return p.Publish(ctx, Notification{
		EventType:      eventType,
		RecipientScope: BroadcastScope,
		Payload:        data,
	})
}
