// Package renderlock serializes invoice document renders across processes.
// A render retry must not race the render started at invoice creation, so
// both paths take a short redis lease keyed by invoice id first.
package renderlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/ridgelinehq/roofcrm/internal/config"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const DefaultTTL = 30 * time.Second

var Module = fx.Module("render.lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when no redis address is configured. The locker
// degrades to a no-op in that case, which is fine for single-node installs.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

func renderKey(invoiceID snowflake.ID) string {
	return fmt.Sprintf("render:invoice:%s", invoiceID.String())
}

// TryAcquire takes the render lease for an invoice. The returned token fences
// the release so an expired holder cannot delete a newer lease. A nil locker
// always grants the lease.
func (l *Locker) TryAcquire(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("render lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, renderKey(invoiceID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, invoiceID snowflake.ID, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{renderKey(invoiceID)}, token).Err()
}
