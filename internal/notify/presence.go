package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 2 * time.Minute

// Presence tracks which users hold at least one live WebSocket, backed by
// Redis so every instance sees the same view. Each user's key counts
// connections and expires if heartbeats stop.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) key(userID string) string {
	return "presence:user:" + userID
}

// Connect records one more live connection for userID.
func (p *Presence) Connect(ctx context.Context, userID string) error {
	pipe := p.client.TxPipeline()
	pipe.Incr(ctx, p.key(userID))
	pipe.Expire(ctx, p.key(userID), presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording presence: %w", err)
	}
	return nil
}

// Disconnect drops one connection; the key is removed at zero.
func (p *Presence) Disconnect(ctx context.Context, userID string) error {
	n, err := p.client.Decr(ctx, p.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("releasing presence: %w", err)
	}
	if n <= 0 {
		return p.client.Del(ctx, p.key(userID)).Err()
	}
	return nil
}

// Heartbeat extends the presence TTL, called from the ping loop.
func (p *Presence) Heartbeat(ctx context.Context, userID string) error {
	return p.client.Expire(ctx, p.key(userID), presenceTTL).Err()
}

// Online reports whether userID has any live connection.
func (p *Presence) Online(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking presence: %w", err)
	}
	return n > 0, nil
}
