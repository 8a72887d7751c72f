package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository over coin_transactions.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, user_id, amount, direction, source, reason_kind, reason_detail,
	balance_after, idempotency_key, batch_id, consumed, metadata, created_at`

// Record appends a transaction record within a database transaction.
func (r *TransactionRepo) Record(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) error {
	consumed, err := marshalNullable(rec.Consumed, len(rec.Consumed) == 0)
	if err != nil {
		return fmt.Errorf("encode consumed batches: %w", err)
	}
	metadata, err := marshalNullable(rec.Metadata, len(rec.Metadata) == 0)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `INSERT INTO coin_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Amount, string(rec.Direction), nullString(string(rec.Source)),
		string(rec.Reason.Kind), rec.Reason.Detail, rec.BalanceAfter, rec.IdempotencyKey,
		nullString(rec.BatchID), consumed, metadata, rec.Timestamp,
	)
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

// GetByID fetches a record by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM coin_transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the record created under key, across all users.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM coin_transactions WHERE idempotency_key = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, key))
}

// ListByUser returns a page of the user's history, newest first, using
// keyset pagination on (created_at, id).
func (r *TransactionRepo) ListByUser(ctx context.Context, params ports.TransactionListParams) ([]domain.TransactionRecord, error) {
	conditions := []string{"user_id = $1"}
	args := []any{params.UserID}
	argIdx := 2

	if params.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIdx))
		args = append(args, string(*params.Direction))
		argIdx++
	}
	if params.Before != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argIdx, argIdx+1))
		args = append(args, params.Before.Timestamp, params.Before.ID)
		argIdx += 2
	}

	query := fmt.Sprintf(`SELECT %s FROM coin_transactions WHERE %s
		ORDER BY created_at DESC, id DESC LIMIT $%d`,
		transactionColumns, strings.Join(conditions, " AND "), argIdx)
	args = append(args, params.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate transaction rows", err)
	}
	return records, nil
}

func scanTransaction(row pgx.Row) (*domain.TransactionRecord, error) {
	var (
		rec                domain.TransactionRecord
		direction, kind    string
		source, batchID    *string
		consumed, metadata []byte
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Amount, &direction, &source, &kind, &rec.Reason.Detail,
		&rec.BalanceAfter, &rec.IdempotencyKey, &batchID, &consumed, &metadata, &rec.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("scan transaction", err)
	}

	rec.Direction = domain.Direction(direction)
	rec.Reason.Kind = domain.ReasonKind(kind)
	rec.Timestamp = rec.Timestamp.UTC()
	if source != nil {
		rec.Source = domain.Source(*source)
	}
	if batchID != nil {
		rec.BatchID = *batchID
	}
	if len(consumed) > 0 {
		if err := json.Unmarshal(consumed, &rec.Consumed); err != nil {
			return nil, fmt.Errorf("decode consumed batches: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &rec, nil
}

func marshalNullable(v any, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
