package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = keyPrefix + "health"

// HealthCheck reports Redis as healthy when it accepts writes. A read-only
// replica answers PING but would reject every reservation.
type HealthCheck struct {
	client *goredis.Client
}

// NewHealthCheck creates a Redis health checker.
func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping writes and reads back a short-lived probe key.
func (h *HealthCheck) Ping(ctx context.Context) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := h.client.Set(ctx, healthKey, stamp, time.Minute).Err(); err != nil {
		return err
	}
	got, err := h.client.Get(ctx, healthKey).Result()
	if err != nil {
		return err
	}
	if got != stamp {
		return fmt.Errorf("redis health key read back %q", got)
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "redis"
}
