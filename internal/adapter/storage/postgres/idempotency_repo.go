package postgres

import (
	"context"
	"errors"
	"fmt"

	"coin-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. The primary key on
// idempotency_keys makes every key globally unique.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Reserve claims the key within a database transaction. It returns false when
// the key is already taken by a committed transaction.
func (r *IdempotencyRepo) Reserve(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) (bool, error) {
	query := `INSERT INTO idempotency_keys (key, user_id, transaction_id, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO NOTHING`

	tag, err := tx.Exec(ctx, query, rec.Key, rec.UserID, rec.TransactionID, rec.CreatedAt)
	if err != nil {
		return false, classify("reserve idempotency key", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get fetches an idempotency record by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, user_id, transaction_id, created_at FROM idempotency_keys WHERE key = $1`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.UserID, &rec.TransactionID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", classify("select", err))
	}
	return rec, nil
}
