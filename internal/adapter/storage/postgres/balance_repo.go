package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository over coin_balances and coin_batches.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

const (
	selectBalanceHeader  = `SELECT total_balance, version, last_updated FROM coin_balances WHERE user_id = $1`
	selectBalanceBatches = `SELECT id, source, original_amount, remaining_amount, created_at, expires_at
		FROM coin_batches WHERE user_id = $1 ORDER BY expires_at, created_at, id`
)

// Load reads the user's balance inside tx.
func (r *BalanceRepo) Load(ctx context.Context, tx pgx.Tx, userID string) (domain.BalanceState, error) {
	state, found, err := loadBalance(ctx, tx, userID)
	if err != nil {
		return domain.BalanceState{}, err
	}
	if !found {
		return domain.NewBalanceState(userID), nil
	}
	return *state, nil
}

// Get reads the user's balance outside of any transaction.
func (r *BalanceRepo) Get(ctx context.Context, userID string) (*domain.BalanceState, error) {
	state, found, err := loadBalance(ctx, r.pool, userID)
	if err != nil || !found {
		return nil, err
	}
	return state, nil
}

// Save writes the balance header. The first write for a user inserts the row;
// later writes require the stored version to equal state.Version.
func (r *BalanceRepo) Save(ctx context.Context, tx pgx.Tx, state domain.BalanceState) error {
	if state.Version == 0 {
		tag, err := tx.Exec(ctx,
			`INSERT INTO coin_balances (user_id, total_balance, version, last_updated)
			VALUES ($1, $2, 1, $3) ON CONFLICT (user_id) DO NOTHING`,
			state.UserID, state.TotalBalance, state.LastUpdated,
		)
		if err != nil {
			return classify("insert balance", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("insert balance %s: %w", state.UserID, domain.ErrWriteConflict)
		}
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE coin_balances SET total_balance = $1, last_updated = $2, version = version + 1
		WHERE user_id = $3 AND version = $4`,
		state.TotalBalance, state.LastUpdated, state.UserID, state.Version,
	)
	if err != nil {
		return classify("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update balance %s at version %d: %w", state.UserID, state.Version, domain.ErrWriteConflict)
	}
	return nil
}

// querier is satisfied by both Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadBalance(ctx context.Context, q querier, userID string) (*domain.BalanceState, bool, error) {
	state := domain.NewBalanceState(userID)
	var lastUpdated time.Time
	err := q.QueryRow(ctx, selectBalanceHeader, userID).Scan(&state.TotalBalance, &state.Version, &lastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("get balance", err)
	}
	state.LastUpdated = lastUpdated.UTC()

	rows, err := q.Query(ctx, selectBalanceBatches, userID)
	if err != nil {
		return nil, false, classify("list batches", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b      domain.CoinBatch
			source string
		)
		if err := rows.Scan(&b.ID, &source, &b.OriginalAmount, &b.RemainingAmount, &b.CreatedAt, &b.ExpiresAt); err != nil {
			return nil, false, fmt.Errorf("scan batch row: %w", err)
		}
		b.Source = domain.Source(source)
		b.CreatedAt = b.CreatedAt.UTC()
		b.ExpiresAt = b.ExpiresAt.UTC()
		state.Batches = append(state.Batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, classify("iterate batch rows", err)
	}
	return &state, true, nil
}
