package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CursorStore implements ports.CursorStore. Each job run keeps the last
// fully processed page boundary so a restarted run resumes after it.
type CursorStore struct {
	client *goredis.Client
	prefix string
}

// NewCursorStore creates a new Redis-backed cursor store.
func NewCursorStore(client *goredis.Client) *CursorStore {
	return &CursorStore{
		client: client,
		prefix: keyPrefix + "jobcursor:",
	}
}

// Load returns the saved cursor for runKey, or "" when the run has none.
func (s *CursorStore) Load(ctx context.Context, runKey string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+runKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis cursor load: %w", err)
	}
	return val, nil
}

// Save checkpoints cursor for runKey.
func (s *CursorStore) Save(ctx context.Context, runKey string, cursor string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+runKey, cursor, ttl).Err(); err != nil {
		return fmt.Errorf("redis cursor save: %w", err)
	}
	return nil
}

// Clear removes the checkpoint once a run completes.
func (s *CursorStore) Clear(ctx context.Context, runKey string) error {
	if err := s.client.Del(ctx, s.prefix+runKey).Err(); err != nil {
		return fmt.Errorf("redis cursor clear: %w", err)
	}
	return nil
}
