package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_ValidateKnownTypes(t *testing.T) {
	for _, et := range []EventType{
		EventLeadCreated,
		EventLeadAnalyzed,
		EventMessageCreated,
		EventSubscriptionCreated,
		EventSubscriptionUpdated,
		EventConversationDeleted,
		EventNotificationCreated,
	} {
		n := Notification{EventType: et, RecipientScope: "user-1"}
		assert.NoError(t, n.Validate(), "event type %s", et)
	}
}

func TestNotification_ValidateRejectsUnknownType(t *testing.T) {
	n := Notification{EventType: "invoice_paid", RecipientScope: "user-1"}
	err := n.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestNotification_ValidateRejectsEmptyScope(t *testing.T) {
	n := Notification{EventType: EventLeadCreated}
	assert.Error(t, n.Validate())
}

func TestNotification_Subject(t *testing.T) {
	user := Notification{EventType: EventLeadCreated, RecipientScope: "user-42"}
	assert.Equal(t, "agentsflow.notifications.user.user-42", user.Subject())

	bcast := Notification{EventType: EventSubscriptionUpdated, RecipientScope: BroadcastScope}
	assert.Equal(t, "agentsflow.notifications.broadcast", bcast.Subject())
}

func TestNotification_JSONRoundsPayloadThrough(t *testing.T) {
	n := Notification{
		EventType:      EventMessageCreated,
		RecipientScope: "user-7",
		Payload:        json.RawMessage(`{"conversation_id":"c1","agent_id":"pricing_agent"}`),
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var got Notification
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventMessageCreated, got.EventType)
	assert.JSONEq(t, string(n.Payload), string(got.Payload))
}
