// Package counter tracks ingestion volume in Redis. It is best-effort:
// counter failures are swallowed so they can never affect the outcome of
// the ingestion call itself.
package counter

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const uploadsKey = "uploads:count"

type Counter struct {
	redis   *redis.Client
	enabled bool
}

// New creates a counter. A nil client or enabled=false yields a no-op counter.
func New(redisClient *redis.Client, enabled bool) *Counter {
	return &Counter{
		redis:   redisClient,
		enabled: enabled,
	}
}

func (c *Counter) isEnabled() bool {
	return c.enabled && c.redis != nil
}

// IncrUploads bumps the global upload counter. Errors are logged and dropped.
func (c *Counter) IncrUploads(ctx context.Context) {
	if !c.isEnabled() {
		return
	}
	if err := c.redis.Incr(ctx, uploadsKey).Err(); err != nil {
		log.Printf("Counter increment failed (ignored): %v", err)
	}
}

// Uploads returns the current upload count, or -1 if the counter is
// unavailable. A missing key reads as zero.
func (c *Counter) Uploads(ctx context.Context) int64 {
	if !c.isEnabled() {
		return -1
	}
	n, err := c.redis.Get(ctx, uploadsKey).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		log.Printf("Counter read failed (ignored): %v", err)
		return -1
	}
	return n
}

// Ping checks counter reachability. Used by the readiness endpoint only;
// ingestion never calls it.
func (c *Counter) Ping(ctx context.Context) error {
	if !c.isEnabled() {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
