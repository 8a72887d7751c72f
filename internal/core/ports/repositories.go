package ports

import (
	"context"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepository persists the per-user balance header. Writes are
// optimistic: Save succeeds only if the stored version still equals
// state.Version, and fails with domain.ErrWriteConflict otherwise.
type BalanceRepository interface {
	// Load reads the header and every batch of the user inside tx.
	// A user without a row yields an empty state with Version 0.
	Load(ctx context.Context, tx pgx.Tx, userID string) (domain.BalanceState, error)
	// Get is the read-only variant used outside mutations. Returns nil if the user has no row.
	Get(ctx context.Context, userID string) (*domain.BalanceState, error)
	Save(ctx context.Context, tx pgx.Tx, state domain.BalanceState) error
}

// BatchRepository persists coin batches.
type BatchRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, userID string, batches []domain.CoinBatch) error
	UpdateRemaining(ctx context.Context, tx pgx.Tx, batches []domain.CoinBatch) error
	Delete(ctx context.Context, tx pgx.Tx, userID string, ids []string) error
	// ListUserIDsExpiring pages through users owning a batch with
	// from < expires_at <= to, ordered by user id and starting after the cursor.
	ListUserIDsExpiring(ctx context.Context, from, to time.Time, after string, limit int) ([]string, error)
}

// TransactionRecorder appends one record per ledger mutation, in the same
// storage transaction as the balance write.
type TransactionRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) error
}

// TransactionRepository is the read side of the transaction log.
type TransactionRepository interface {
	TransactionRecorder
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TransactionRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.TransactionRecord, error)
	ListByUser(ctx context.Context, params TransactionListParams) ([]domain.TransactionRecord, error)
}

// TransactionCursor marks the last record of a history page.
type TransactionCursor struct {
	Timestamp time.Time
	ID        uuid.UUID
}

// TransactionListParams holds filter + keyset pagination for a user's history.
// Records are returned newest first.
type TransactionListParams struct {
	UserID    string
	Direction *domain.Direction
	Before    *TransactionCursor
	Limit     int
}

// IdempotencyRepository is the durable layer of the idempotency guard.
type IdempotencyRepository interface {
	// Reserve inserts the key inside tx. Returns false if the key already exists.
	Reserve(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) (bool, error)
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// SubscriptionRepository pages through subscriptions for the allowance job.
type SubscriptionRepository interface {
	ListAllowanceEligible(ctx context.Context, after string, limit int) ([]domain.Subscription, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
