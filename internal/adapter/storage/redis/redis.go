package redis

import (
	"context"
	"fmt"
	"time"

	"coin-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces every key this service writes so the Redis instance
// can be shared with the rest of the app backend.
const keyPrefix = "coinledger:"

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 500 * time.Millisecond
)

// NewClient connects to the Redis instance holding the idempotency cache,
// reservations, job cursors, nonces and rate-limit counters.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Str("key_prefix", keyPrefix).
		Msg("ledger redis ready")

	return client, nil
}

// clientOptions keeps reads and writes short: every Redis layer in front of
// the ledger fails open, so a slow Redis must not stall a credit.
func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		MaxRetries:   1,
	}
}
