package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// relayConsumer is the durable consumer name shared by relay instances.
const relayConsumer = "notification-relay"

// Relay pulls notifications off the stream and hands them to the hub.
// Malformed payloads are acked and dropped so they cannot wedge the
// consumer; delivery to subscribers is at most once.
type Relay struct {
	hub      *Hub
	consumer jetstream.Consumer
}

func NewRelay(ctx context.Context, cm *events.ConsumerManager, hub *Hub) (*Relay, error) {
	consumer, err := cm.EnsureConsumer(ctx, events.StreamNotifications, relayConsumer, events.SubjectNotificationAll)
	if err != nil {
		return nil, fmt.Errorf("creating relay consumer: %w", err)
	}
	return &Relay{hub: hub, consumer: consumer}, nil
}

// Run consumes until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	cc, err := r.consumer.Consume(func(msg jetstream.Msg) {
		r.handle(msg)
	})
	if err != nil {
		return fmt.Errorf("starting relay consume: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}

// relayMsg is the part of jetstream.Msg the relay touches; narrowed for
// testability.
type relayMsg interface {
	Data() []byte
	Subject() string
	Ack() error
}

func (r *Relay) handle(msg relayMsg) {
	defer func() {
		if err := msg.Ack(); err != nil {
			slog.Error("acking notification", "error", err, "subject", msg.Subject())
		}
	}()

	var n events.Notification
	if err := json.Unmarshal(msg.Data(), &n); err != nil {
		metrics.NotificationsDroppedTotal.WithLabelValues("malformed").Inc()
		slog.Error("dropping malformed notification", "error", err, "subject", msg.Subject())
		return
	}
	if err := n.Validate(); err != nil {
		metrics.NotificationsDroppedTotal.WithLabelValues("malformed").Inc()
		slog.Error("dropping invalid notification", "error", err, "subject", msg.Subject())
		return
	}

	r.hub.Dispatch(n)
}
