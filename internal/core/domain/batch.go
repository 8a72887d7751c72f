package domain

import (
	"time"
)

// Source classifies where the coins of a batch came from.
type Source string

const (
	SourcePurchased Source = "purchased"
	SourceEarned    Source = "earned"
	SourceGifted    Source = "gifted"
	SourceAllowance Source = "allowance"
	SourceRefund    Source = "refund"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourcePurchased, SourceEarned, SourceGifted, SourceAllowance, SourceRefund:
		return true
	}
	return false
}

// CoinBatch is a discrete lot of coins created by a single credit.
// OriginalAmount never changes; RemainingAmount only decreases.
type CoinBatch struct {
	ID              string    `json:"id"`
	Source          Source    `json:"source"`
	OriginalAmount  int64     `json:"original_amount"`
	RemainingAmount int64     `json:"remaining_amount"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// IsExhausted returns true once every coin of the batch has been consumed.
func (b CoinBatch) IsExhausted() bool {
	return b.RemainingAmount == 0
}

// IsExpired returns true when the batch expiry is at or before now.
func (b CoinBatch) IsExpired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// BalanceState is a user's wallet: the batches plus the cached total.
// Values are treated as immutable; ledger operations return modified copies.
type BalanceState struct {
	UserID       string      `json:"user_id"`
	Batches      []CoinBatch `json:"batches"`
	TotalBalance int64       `json:"total_balance"`
	LastUpdated  time.Time   `json:"last_updated"`
	Version      int64       `json:"-"` // Optimistic concurrency token
}

// NewBalanceState returns the empty wallet of a user that has never held coins.
func NewBalanceState(userID string) BalanceState {
	return BalanceState{UserID: userID, Batches: []CoinBatch{}}
}

// Clone returns a copy that shares no batch storage with s.
func (s BalanceState) Clone() BalanceState {
	cp := s
	cp.Batches = make([]CoinBatch, len(s.Batches))
	copy(cp.Batches, s.Batches)
	return cp
}

// SumRemaining adds up the remaining amount of every batch.
func (s BalanceState) SumRemaining() int64 {
	var sum int64
	for _, b := range s.Batches {
		sum += b.RemainingAmount
	}
	return sum
}

// Reconciles reports whether the cached total matches the batches and
// every batch is within its bounds.
func (s BalanceState) Reconciles() bool {
	for _, b := range s.Batches {
		if b.RemainingAmount < 0 || b.RemainingAmount > b.OriginalAmount {
			return false
		}
	}
	return s.TotalBalance == s.SumRemaining()
}

// Spendable returns the batches that still hold coins and have not expired.
func (s BalanceState) Spendable(now time.Time) []CoinBatch {
	out := make([]CoinBatch, 0, len(s.Batches))
	for _, b := range s.Batches {
		if b.RemainingAmount > 0 && !b.IsExpired(now) {
			out = append(out, b)
		}
	}
	return out
}

// FindBatch returns the batch with the given id.
func (s BalanceState) FindBatch(id string) (CoinBatch, bool) {
	for _, b := range s.Batches {
		if b.ID == id {
			return b, true
		}
	}
	return CoinBatch{}, false
}
