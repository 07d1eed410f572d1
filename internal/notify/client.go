package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentsflowai/agentsflow/internal/events"
)

// ErrAuthRejected means the gateway closed the socket with policy
// violation. The token is bad; reconnecting will not help.
var ErrAuthRejected = errors.New("notify: gateway rejected credentials")

// ErrMaxAttempts means the client gave up reconnecting.
var ErrMaxAttempts = errors.New("notify: reconnect attempts exhausted")

// ClientConfig configures a reconnecting notification client.
type ClientConfig struct {
	URL            string // ws://host/ws/notifications
	Token          string
	InitialBackoff time.Duration // default 1s
	MaxBackoff     time.Duration // default 30s
	MaxAttempts    int           // consecutive failures before giving up, default 10
	PingInterval   time.Duration // default 30s
}

func (c *ClientConfig) withDefaults() ClientConfig {
	out := *c
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = time.Second
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = 30 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 10
	}
	if out.PingInterval <= 0 {
		out.PingInterval = 30 * time.Second
	}
	return out
}

// Client maintains a WebSocket to the notification gateway, reconnecting
// with capped exponential backoff. Received notifications surface on
// Events. An auth rejection stops the client for good.
type Client struct {
	cfg    ClientConfig
	events chan events.Notification
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:    cfg.withDefaults(),
		events: make(chan events.Notification, 64),
	}
}

// Events is the stream of received notifications. It is closed when Run
// returns.
func (c *Client) Events() <-chan events.Notification {
	return c.events
}

// backoffDelay is the wait before reconnect attempt n (zero-based):
// initial doubled per attempt, capped at max.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	if attempt >= 62 {
		return max
	}
	d := initial << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Run connects and reads until ctx is canceled, the token is rejected, or
// MaxAttempts consecutive connection failures occur. A successful connect
// resets the failure counter.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			err = c.readLoop(ctx, conn)
			conn.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthRejected) {
			return err
		}

		if attempt >= c.cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, attempt, err)
		}
		delay := backoffDelay(c.cfg.InitialBackoff, c.cfg.MaxBackoff, attempt)
		attempt++
		slog.Warn("notification stream disconnected, reconnecting",
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing gateway url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	sess := &session{conn: conn}

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := sess.writeJSON(10*time.Second, heartbeat{Type: framePing}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		// heartbeats carry a type field; notifications put the event
		// fields at the top level
		var f struct {
			Type string `json:"type"`
			events.Notification
		}
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return ErrAuthRejected
			}
			return err
		}

		if f.Type != "" || f.EventType == "" {
			continue
		}
		select {
		case c.events <- f.Notification:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
