package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// IdempotencyGuard deduplicates credits by key. Keys are global, not per user.
//
// Layer 1: Redis cache of committed records (replay without touching the DB).
// Layer 2: Redis SET NX reservation (racing duplicates fail before a DB tx).
// Layer 3: idempotency_keys insert inside the credit's own DB transaction.
//
// Layers 1 and 2 fail open: a Redis outage falls through to layer 3.
type IdempotencyGuard struct {
	cache          ports.IdempotencyCache
	reservations   ports.ReservationStore
	keys           ports.IdempotencyRepository
	txRepo         ports.TransactionRepository
	cacheTTL       time.Duration
	reservationTTL time.Duration
	log            zerolog.Logger
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(
	cache ports.IdempotencyCache,
	reservations ports.ReservationStore,
	keys ports.IdempotencyRepository,
	txRepo ports.TransactionRepository,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *IdempotencyGuard {
	return &IdempotencyGuard{
		cache:          cache,
		reservations:   reservations,
		keys:           keys,
		txRepo:         txRepo,
		cacheTTL:       cfg.IdempotencyTTL,
		reservationTTL: cfg.ReservationTTL,
		log:            log,
	}
}

// Cached returns the committed record for key from the cache, or nil.
func (g *IdempotencyGuard) Cached(ctx context.Context, key string) *domain.TransactionRecord {
	raw, err := g.cache.Get(ctx, key)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}
	var rec domain.TransactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable idempotency cache entry")
		return nil
	}
	return &rec
}

// Claim takes the short-lived in-flight reservation on key. It fails with
// domain.ErrDuplicateKey when another request holds it. The returned release
// func must be called once the credit finished, committed or not.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	ok, err := g.reservations.Reserve(ctx, key, owner, g.reservationTTL)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("redis reservation failed, relying on DB uniqueness")
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("key %s in flight: %w", key, domain.ErrDuplicateKey)
	}
	return func() {
		if err := g.reservations.Release(context.WithoutCancel(ctx), key, owner); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("failed to release reservation")
		}
	}, nil
}

// CheckAndReserve inserts key inside tx. The unique index decides the race
// between concurrent credits; the loser gets domain.ErrDuplicateKey.
func (g *IdempotencyGuard) CheckAndReserve(ctx context.Context, tx pgx.Tx, userID, key string, txID uuid.UUID, at time.Time) error {
	ok, err := g.keys.Reserve(ctx, tx, &domain.IdempotencyRecord{
		Key:           key,
		UserID:        userID,
		TransactionID: txID,
		CreatedAt:     at,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("key %s: %w", key, domain.ErrDuplicateKey)
	}
	return nil
}

// Replay returns the record originally created under key, or nil if it has
// not been committed yet.
func (g *IdempotencyGuard) Replay(ctx context.Context, key string) (*domain.TransactionRecord, error) {
	if rec := g.Cached(ctx, key); rec != nil {
		return rec, nil
	}
	rec, err := g.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("replay lookup: %w", err)
	}
	if rec != nil {
		g.Remember(ctx, rec)
	}
	return rec, nil
}

// Remember caches a committed record (best-effort).
func (g *IdempotencyGuard) Remember(ctx context.Context, rec *domain.TransactionRecord) {
	key := rec.Key()
	if key == "" {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to encode record for idempotency cache")
		return
	}
	if err := g.cache.Set(ctx, key, raw, g.cacheTTL); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}
