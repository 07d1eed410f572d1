package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay_DoublesAndCaps(t *testing.T) {
	initial := time.Second
	max := 30 * time.Second

	assert.Equal(t, 1*time.Second, backoffDelay(initial, max, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(initial, max, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(initial, max, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(initial, max, 3))
	assert.Equal(t, 16*time.Second, backoffDelay(initial, max, 4))
	assert.Equal(t, 30*time.Second, backoffDelay(initial, max, 5))
	assert.Equal(t, 30*time.Second, backoffDelay(initial, max, 20))
}

func TestBackoffDelay_MonotoneNonDecreasing(t *testing.T) {
	initial := 500 * time.Millisecond
	max := time.Minute

	prev := time.Duration(0)
	for attempt := 0; attempt < 40; attempt++ {
		d := backoffDelay(initial, max, attempt)
		require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		require.LessOrEqual(t, d, max, "attempt %d", attempt)
		prev = d
	}
}

func TestBackoffDelay_HugeAttemptStaysAtMax(t *testing.T) {
	assert.Equal(t, time.Minute, backoffDelay(time.Second, time.Minute, 100))
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	c := NewClient(ClientConfig{
		URL:            "ws://127.0.0.1:1/ws/notifications", // nothing listens here
		Token:          "token",
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MaxAttempts:    3,
	})

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrMaxAttempts)

	_, open := <-c.Events()
	assert.False(t, open, "events channel closes when Run returns")
}

func TestClient_ResetsAttemptsAfterReconnect(t *testing.T) {
	var conns atomic.Int32
	hold := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if conns.Add(1) <= 5 {
			conn.Close() // drop right away to force a reconnect
			return
		}
		defer conn.Close()
		<-hold
	}))
	defer srv.Close()
	defer close(hold)

	c := NewClient(ClientConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:          "token",
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		MaxAttempts:    2,
		PingInterval:   time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	// every successful connect resets the failure counter, so five
	// consecutive drops never exhaust MaxAttempts=2
	require.Eventually(t, func() bool { return conns.Load() >= 6 }, 5*time.Second, 10*time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("client gave up despite successful reconnects: %v", err)
	default:
	}
}

func TestClient_StopsOnContextCancel(t *testing.T) {
	c := NewClient(ClientConfig{
		URL:            "ws://127.0.0.1:1/ws/notifications",
		Token:          "token",
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		MaxAttempts:    1000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
}

func TestClientConfig_Defaults(t *testing.T) {
	cfg := (&ClientConfig{URL: "ws://x"}).withDefaults()
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
}
