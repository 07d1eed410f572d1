//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/notify"
)

func wsEndpoint(env *TestEnv) string {
	return "ws" + strings.TrimPrefix(env.Server.URL, "http") + "/ws/notifications"
}

func TestNotificationStream(t *testing.T) {
	env := SetupTestEnv(t)
	publisher := events.NewPublisher(env.EventsClient.JetStream())

	t.Run("user receives published event", func(t *testing.T) {
		token := TokenFor(t, env, "ws-user-1")
		conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool {
			return env.Hub.Subscribers("ws-user-1") == 1
		}, 5*time.Second, 20*time.Millisecond)

		err = publisher.PublishToUser(context.Background(), "ws-user-1",
			events.EventLeadCreated, map[string]string{"lead_id": "42"})
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var n events.Notification
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, events.EventLeadCreated, n.EventType)
	})

	t.Run("events are scoped to their user", func(t *testing.T) {
		token := TokenFor(t, env, "ws-user-2")
		conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool {
			return env.Hub.Subscribers("ws-user-2") == 1
		}, 5*time.Second, 20*time.Millisecond)

		err = publisher.PublishToUser(context.Background(), "someone-else",
			events.EventLeadCreated, map[string]string{"lead_id": "43"})
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(time.Second))
		var n events.Notification
		err = conn.ReadJSON(&n)
		require.Error(t, err, "no frame should arrive for another user's event")
	})

	t.Run("broadcast reaches connected clients", func(t *testing.T) {
		token := TokenFor(t, env, "ws-user-3")
		conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool {
			return env.Hub.Subscribers("ws-user-3") == 1
		}, 5*time.Second, 20*time.Millisecond)

		err = publisher.PublishBroadcast(context.Background(),
			events.EventNotificationCreated, map[string]string{"text": "maintenance window"})
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var n events.Notification
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, events.EventNotificationCreated, n.EventType)
	})

	t.Run("bad token gets policy violation close", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token=garbage", nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	})

	t.Run("chat turn emits message_created", func(t *testing.T) {
		token := TokenFor(t, env, "ws-user-4")
		conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool {
			return env.Hub.Subscribers("ws-user-4") == 1
		}, 5*time.Second, 20*time.Millisecond)

		body := map[string]string{
			"conversation_id": "it-ws-conv",
			"message":         "hello there",
		}
		resp := DoRequest(t, env, "POST", "/api/v1/chat/message", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var n events.Notification
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, events.EventMessageCreated, n.EventType)
		assert.Equal(t, "ws-user-4", n.RecipientScope)
	})
}

func TestPresenceTracking(t *testing.T) {
	env := SetupTestEnv(t)
	presence := notify.NewPresence(env.RedisClient)

	token := TokenFor(t, env, "presence-user")
	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(env)+"?token="+token, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		online, err := presence.Online(context.Background(), "presence-user")
		return err == nil && online
	}, 5*time.Second, 20*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		online, err := presence.Online(context.Background(), "presence-user")
		return err == nil && !online
	}, 5*time.Second, 20*time.Millisecond)
}
