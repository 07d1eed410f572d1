package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsflowai/agentsflow/internal/events"
)

func userEvent(userID string) events.Notification {
	payload, _ := json.Marshal(map[string]string{"k": "v"})
	return events.Notification{
		EventType:      events.EventMessageCreated,
		RecipientScope: userID,
		Payload:        payload,
	}
}

func TestHub_DeliversToScopedUser(t *testing.T) {
	h := NewHub(4)
	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")
	defer h.Unsubscribe(alice)
	defer h.Unsubscribe(bob)

	h.Dispatch(userEvent("alice"))

	select {
	case n := <-alice.Send:
		assert.Equal(t, events.EventMessageCreated, n.EventType)
	default:
		t.Fatal("alice should have received the event")
	}
	assert.Empty(t, bob.Send)
}

func TestHub_BroadcastReachesEveryone(t *testing.T) {
	h := NewHub(4)
	subs := []*Subscriber{h.Subscribe("alice"), h.Subscribe("alice"), h.Subscribe("bob")}
	defer func() {
		for _, s := range subs {
			h.Unsubscribe(s)
		}
	}()

	n := userEvent("ignored")
	n.RecipientScope = events.BroadcastScope
	h.Dispatch(n)

	for i, s := range subs {
		assert.Len(t, s.Send, 1, "subscriber %d", i)
	}
}

func TestHub_NoSubscribersNoError(t *testing.T) {
	h := NewHub(4)
	// nobody is attached; at-most-once delivery means this just vanishes
	h.Dispatch(userEvent("ghost"))
	assert.Zero(t, h.Subscribers("ghost"))
}

func TestHub_SlowConsumerDropsWithoutBlocking(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe("alice")
	defer h.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			h.Dispatch(userEvent("alice"))
		}
	}()
	<-done

	// buffer holds 2; the other 8 were dropped, not queued
	assert.Len(t, slow.Send, 2)
}

func TestHub_SlowConsumerDoesNotStarveOthers(t *testing.T) {
	h := NewHub(1)
	slow := h.Subscribe("alice")
	fast := h.Subscribe("alice")
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	h.Dispatch(userEvent("alice"))
	<-fast.Send // drain fast, leave slow full
	h.Dispatch(userEvent("alice"))

	assert.Len(t, fast.Send, 1, "fast subscriber keeps receiving")
	assert.Len(t, slow.Send, 1, "slow subscriber stays at capacity")
}

func TestHub_UnsubscribeClosesChannelOnce(t *testing.T) {
	h := NewHub(4)
	sub := h.Subscribe("alice")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // second call is a no-op

	_, open := <-sub.Send
	require.False(t, open)
	assert.Zero(t, h.Subscribers("alice"))
}
