// Package ledger holds the pure coin ledger rules: crediting batches,
// FIFO-by-expiration debits and expiration sweeps. Nothing here performs I/O;
// every operation takes a BalanceState value and returns a new one.
package ledger

import (
	"cmp"
	"slices"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// Engine applies ledger mutations. The clock and id generators are injectable
// so results are reproducible in tests.
type Engine struct {
	now        func() time.Time
	newBatchID func() string
	newTxID    func() uuid.UUID
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides batch and transaction id generation.
func WithIDs(batchID func() string, txID func() uuid.UUID) Option {
	return func(e *Engine) {
		e.newBatchID = batchID
		e.newTxID = txID
	}
}

// NewEngine creates an Engine using UTC wall time and random UUIDs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:        func() time.Time { return time.Now().UTC() },
		newBatchID: uuid.NewString,
		newTxID:    uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current instant.
func (e *Engine) Now() time.Time {
	return e.now()
}

// storePrecision is the resolution of TIMESTAMPTZ columns.
const storePrecision = time.Microsecond

// CreditInput describes a credit. IdempotencyKey must already have been
// reserved by the caller; the engine only copies it onto the record.
type CreditInput struct {
	Amount         int64
	Source         domain.Source
	Reason         domain.Reason
	ExpiresAt      time.Time
	IdempotencyKey string
	Metadata       map[string]string
}

// Credit appends a new batch holding in.Amount coins.
func (e *Engine) Credit(state domain.BalanceState, in CreditInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{State: state}, domain.ErrInvalidAmount
	}
	if !in.Source.Valid() {
		return Result{State: state}, domain.ErrInvalidSource
	}
	// Compare at the precision the store keeps so a batch accepted here
	// still satisfies expires_at > created_at once persisted.
	now := e.now().Truncate(storePrecision)
	expiresAt := in.ExpiresAt.Truncate(storePrecision)
	if !expiresAt.After(now) {
		return Result{State: state}, domain.ErrInvalidExpiration
	}

	batch := domain.CoinBatch{
		ID:              e.newBatchID(),
		Source:          in.Source,
		OriginalAmount:  in.Amount,
		RemainingAmount: in.Amount,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
	}

	next := state.Clone()
	next.Batches = append(next.Batches, batch)
	next.TotalBalance += in.Amount
	next.LastUpdated = now

	rec := domain.TransactionRecord{
		ID:           e.newTxID(),
		UserID:       state.UserID,
		Amount:       in.Amount,
		Direction:    domain.DirectionCredit,
		Source:       in.Source,
		Reason:       in.Reason,
		BalanceAfter: next.TotalBalance,
		BatchID:      batch.ID,
		Metadata:     in.Metadata,
		Timestamp:    now,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		rec.IdempotencyKey = &key
	}

	return Result{
		State:   next,
		Records: []domain.TransactionRecord{rec},
		Changes: Changes{Inserted: []domain.CoinBatch{batch}},
	}, nil
}

// Debit consumes amount coins, soonest-to-expire first. When the batches do
// not hold enough coins the input state is returned untouched together with
// an *InsufficientBalanceError.
func (e *Engine) Debit(state domain.BalanceState, amount int64, reason domain.Reason) (Result, error) {
	if amount <= 0 {
		return Result{State: state}, domain.ErrInvalidAmount
	}
	available := state.SumRemaining()
	if available < amount {
		return Result{State: state}, &domain.InsufficientBalanceError{
			Available: available,
			Requested: amount,
		}
	}

	now := e.now()
	next := state.Clone()
	SortForConsumption(next.Batches)

	var (
		needed   = amount
		consumed []domain.Consumption
		updated  []domain.CoinBatch
	)
	for i := range next.Batches {
		if needed == 0 {
			break
		}
		b := &next.Batches[i]
		if b.RemainingAmount == 0 {
			continue
		}
		take := min(b.RemainingAmount, needed)
		b.RemainingAmount -= take
		needed -= take
		consumed = append(consumed, domain.Consumption{BatchID: b.ID, Amount: take})
		updated = append(updated, *b)
	}

	next.TotalBalance -= amount
	next.LastUpdated = now

	rec := domain.TransactionRecord{
		ID:           e.newTxID(),
		UserID:       state.UserID,
		Amount:       amount,
		Direction:    domain.DirectionDebit,
		Reason:       reason,
		BalanceAfter: next.TotalBalance,
		Consumed:     consumed,
		Timestamp:    now,
	}

	return Result{
		State:   next,
		Records: []domain.TransactionRecord{rec},
		Changes: Changes{Updated: updated},
	}, nil
}

// SortForConsumption orders batches by expiry, then creation time, then id.
func SortForConsumption(batches []domain.CoinBatch) {
	slices.SortFunc(batches, func(a, b domain.CoinBatch) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
