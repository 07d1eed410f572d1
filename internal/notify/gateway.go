package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentsflowai/agentsflow/internal/auth"
	"github.com/agentsflowai/agentsflow/internal/config"
	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// Notification frames put the event fields (event_type, recipient_scope,
// payload, created_at) at the top level of the JSON message. Only
// heartbeat frames carry a type field, so a reader distinguishes the two
// by its presence.
type heartbeat struct {
	Type string `json:"type"`
}

const (
	framePing = "ping"
	framePong = "pong"
)

// Gateway upgrades /ws/notifications requests and streams hub deliveries
// to the connected client. Clients authenticate with a token query
// parameter; a bad token closes the socket with policy violation (1008),
// which clients treat as terminal.
type Gateway struct {
	hub      *Hub
	auth     *auth.Service
	presence *Presence
	cfg      config.WSConfig
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, authSvc *auth.Service, presence *Presence, cfg config.WSConfig) *Gateway {
	return &Gateway{
		hub:      hub,
		auth:     authSvc,
		presence: presence,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// session serializes writes on one connection; gorilla allows a single
// concurrent writer.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) writeJSON(deadline time.Duration, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(deadline))
	return s.conn.WriteJSON(v)
}

func (s *session) writeControl(messageType int, data []byte, deadline time.Duration) error {
	return s.conn.WriteControl(messageType, data, time.Now().Add(deadline))
}

// ServeWS handles GET /ws/notifications.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	sess := &session{conn: conn}

	claims, err := g.auth.ValidateAccessToken(r.URL.Query().Get("token"))
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		sess.writeControl(websocket.CloseMessage, msg, g.cfg.WriteWait)
		conn.Close()
		return
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	sub := g.hub.Subscribe(claims.UserID)
	defer g.hub.Unsubscribe(sub)

	if g.presence != nil {
		if err := g.presence.Connect(r.Context(), claims.UserID); err != nil {
			slog.Warn("recording presence", "error", err, "user_id", claims.UserID)
		}
		defer func() {
			if err := g.presence.Disconnect(r.Context(), claims.UserID); err != nil {
				slog.Warn("releasing presence", "error", err, "user_id", claims.UserID)
			}
		}()
	}

	slog.Info("websocket connected", "user_id", claims.UserID, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go g.writePump(sess, sub, claims.UserID, done)
	g.readPump(sess, claims.UserID)
	close(done)

	conn.Close()
	slog.Info("websocket disconnected", "user_id", claims.UserID)
}

func (g *Gateway) writePump(sess *session, sub *Subscriber, userID string, done <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-sub.Send:
			if !ok {
				return
			}
			if err := sess.writeJSON(g.cfg.WriteWait, n); err != nil {
				slog.Warn("writing notification frame", "error", err, "user_id", userID)
				sess.conn.Close()
				return
			}
		case <-ticker.C:
			if err := sess.writeControl(websocket.PingMessage, nil, g.cfg.WriteWait); err != nil {
				sess.conn.Close()
				return
			}
			if g.presence != nil {
				g.presence.Heartbeat(context.Background(), userID)
			}
		case <-done:
			return
		}
	}
}

func (g *Gateway) readPump(sess *session, userID string) {
	sess.conn.SetReadLimit(4096)
	sess.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", "error", err, "user_id", userID)
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

		// clients without control-frame access keepalive with JSON pings
		var hb heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			continue
		}
		if hb.Type == framePing {
			if err := sess.writeJSON(g.cfg.WriteWait, heartbeat{Type: framePong}); err != nil {
				return
			}
		}
	}
}
