package postgres

import (
	"context"
	"fmt"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BatchRepo implements ports.BatchRepository.
type BatchRepo struct {
	pool Pool
}

// NewBatchRepo creates a new BatchRepo.
func NewBatchRepo(pool Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// Insert stores newly credited batches.
func (r *BatchRepo) Insert(ctx context.Context, tx pgx.Tx, userID string, batches []domain.CoinBatch) error {
	query := `INSERT INTO coin_batches (id, user_id, source, original_amount, remaining_amount, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, b := range batches {
		_, err := tx.Exec(ctx, query,
			b.ID, userID, string(b.Source), b.OriginalAmount, b.RemainingAmount, b.CreatedAt, b.ExpiresAt,
		)
		if err != nil {
			return classify("insert batch", err)
		}
	}
	return nil
}

// UpdateRemaining writes the remaining amount of consumed batches. The
// remaining amount may only go down; a row that would grow is a conflict.
func (r *BatchRepo) UpdateRemaining(ctx context.Context, tx pgx.Tx, batches []domain.CoinBatch) error {
	query := `UPDATE coin_batches SET remaining_amount = $1 WHERE id = $2 AND remaining_amount >= $1`

	for _, b := range batches {
		tag, err := tx.Exec(ctx, query, b.RemainingAmount, b.ID)
		if err != nil {
			return classify("update batch", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update batch %s: %w", b.ID, domain.ErrWriteConflict)
		}
	}
	return nil
}

// Delete removes swept or pruned batches.
func (r *BatchRepo) Delete(ctx context.Context, tx pgx.Tx, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `DELETE FROM coin_batches WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return classify("delete batches", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("delete batches for %s: removed %d of %d: %w",
			userID, tag.RowsAffected(), len(ids), domain.ErrWriteConflict)
	}
	return nil
}

// ListUserIDsExpiring returns up to limit user ids, in ascending order after
// the cursor, that own a batch expiring in (from, to].
func (r *BatchRepo) ListUserIDsExpiring(ctx context.Context, from, to time.Time, after string, limit int) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM coin_batches
		WHERE expires_at > $1 AND expires_at <= $2 AND user_id > $3
		ORDER BY user_id LIMIT $4`

	rows, err := r.pool.Query(ctx, query, from, to, after, limit)
	if err != nil {
		return nil, classify("list expiring users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate user ids", err)
	}
	return ids, nil
}
