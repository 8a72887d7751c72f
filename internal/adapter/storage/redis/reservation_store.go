package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the reservation only while it still belongs to the
// caller, so an owner whose claim already expired cannot drop a newer one.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReservationStore implements ports.ReservationStore with SET NX claims.
type ReservationStore struct {
	client *goredis.Client
	prefix string
}

// NewReservationStore creates a new Redis-backed reservation store.
func NewReservationStore(client *goredis.Client) *ReservationStore {
	return &ReservationStore{
		client: client,
		prefix: keyPrefix + "reserve:",
	}
}

// Reserve claims key for owner. It returns false when someone else holds it.
func (s *ReservationStore) Reserve(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+key, owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis reserve: %w", err)
	}
	return result == "OK", nil
}

// Release drops the claim if owner still holds it.
func (s *ReservationStore) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + key}, owner).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
