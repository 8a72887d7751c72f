package ledger

import (
	"math"
	"time"

	"coin-ledger/internal/core/domain"
)

// SweepResult is the outcome of an expiration sweep.
type SweepResult struct {
	Result
	ExpiredAmount   int64
	ExpiredBatchIDs []string
}

// Sweep removes every batch that expired at or before now while still holding
// coins. When nothing expired the input state is returned unchanged and no
// record is produced, so sweeping an already swept state is a no-op.
func (e *Engine) Sweep(state domain.BalanceState, now time.Time) SweepResult {
	var (
		expiredAmount int64
		expiredIDs    []string
		kept          = make([]domain.CoinBatch, 0, len(state.Batches))
	)
	for _, b := range state.Batches {
		if b.IsExpired(now) && b.RemainingAmount > 0 {
			expiredAmount += b.RemainingAmount
			expiredIDs = append(expiredIDs, b.ID)
			continue
		}
		kept = append(kept, b)
	}

	if expiredAmount == 0 {
		return SweepResult{Result: Result{State: state}}
	}

	next := state
	next.Batches = kept
	next.TotalBalance -= expiredAmount
	next.LastUpdated = now

	rec := domain.TransactionRecord{
		ID:           e.newTxID(),
		UserID:       state.UserID,
		Amount:       expiredAmount,
		Direction:    domain.DirectionDebit,
		Reason:       domain.Reason{Kind: domain.ReasonExpired},
		BalanceAfter: next.TotalBalance,
		Timestamp:    now,
	}

	return SweepResult{
		Result: Result{
			State:   next,
			Records: []domain.TransactionRecord{rec},
			Changes: Changes{Deleted: expiredIDs},
		},
		ExpiredAmount:   expiredAmount,
		ExpiredBatchIDs: expiredIDs,
	}
}

// Prune drops exhausted batches that have also expired. The balance does not
// move, so no record is produced.
func Prune(state domain.BalanceState, now time.Time) Result {
	var pruned []string
	kept := make([]domain.CoinBatch, 0, len(state.Batches))
	for _, b := range state.Batches {
		if b.IsExhausted() && b.IsExpired(now) {
			pruned = append(pruned, b.ID)
			continue
		}
		kept = append(kept, b)
	}
	if len(pruned) == 0 {
		return Result{State: state}
	}

	next := state
	next.Batches = kept
	return Result{State: next, Changes: Changes{Deleted: pruned}}
}

// ExpiringWithin summarises the coins that expire in (now, now+window].
// ok is false when nothing is about to expire.
func ExpiringWithin(state domain.BalanceState, now time.Time, window time.Duration) (domain.ExpiryWarning, bool) {
	limit := now.Add(window)
	w := domain.ExpiryWarning{UserID: state.UserID}
	for _, b := range state.Batches {
		if b.RemainingAmount == 0 || !b.ExpiresAt.After(now) || b.ExpiresAt.After(limit) {
			continue
		}
		w.ExpiringAmount += b.RemainingAmount
		if w.EarliestExpiry.IsZero() || b.ExpiresAt.Before(w.EarliestExpiry) {
			w.EarliestExpiry = b.ExpiresAt
		}
	}
	if w.ExpiringAmount == 0 {
		return domain.ExpiryWarning{}, false
	}
	w.DaysUntilExpiry = int(math.Ceil(w.EarliestExpiry.Sub(now).Hours() / 24))
	return w, true
}
