package dto

import (
	"time"

	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"
)

// SpendRequest is the request body for spending coins on an item.
type SpendRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Item   string `json:"item" binding:"required,max=64,safe_id"`
}

// ClaimRewardRequest is the request body for claiming a catalog reward.
type ClaimRewardRequest struct {
	Reward         string `json:"reward" binding:"required,max=64,safe_id"`
	ReferredUserID string `json:"referred_user_id,omitempty" binding:"omitempty,max=128,safe_id"`
}

// PurchaseRequest is the request body for crediting a verified store purchase.
type PurchaseRequest struct {
	UserID        string `json:"user_id" binding:"required,max=128,safe_id"`
	PackageID     string `json:"package_id" binding:"required,max=64,safe_id"`
	PurchaseToken string `json:"purchase_token" binding:"required,max=512" sanitize:"-"`
	Platform      string `json:"platform" binding:"required,oneof=android ios"`
}

// CreditRequest is the request body for a direct credit by an internal caller.
type CreditRequest struct {
	UserID         string            `json:"user_id" binding:"required,max=128,safe_id"`
	Amount         int64             `json:"amount" binding:"required,gt=0"`
	Source         string            `json:"source" binding:"required,coin_source"`
	ReasonKind     string            `json:"reason" binding:"required,oneof=gift refund reward"`
	ReasonDetail   string            `json:"reason_detail,omitempty" binding:"max=128"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" binding:"max=200" sanitize:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ToPort converts the body into the ledger's credit request.
func (r CreditRequest) ToPort() ports.CreditRequest {
	return ports.CreditRequest{
		UserID:         r.UserID,
		Amount:         r.Amount,
		Source:         domain.Source(r.Source),
		Reason:         domain.Reason{Kind: domain.ReasonKind(r.ReasonKind), Detail: r.ReasonDetail},
		ExpiresAt:      r.ExpiresAt,
		IdempotencyKey: r.IdempotencyKey,
		Metadata:       r.Metadata,
	}
}

// TransactionResponse is the public shape of a ledger record.
type TransactionResponse struct {
	ID             string               `json:"id"`
	Amount         int64                `json:"amount"`
	Direction      string               `json:"direction"`
	Source         string               `json:"source,omitempty"`
	Reason         string               `json:"reason"`
	BalanceAfter   int64                `json:"balance_after"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Consumed       []domain.Consumption `json:"consumed,omitempty"`
	Metadata       map[string]string    `json:"metadata,omitempty"`
	Timestamp      string               `json:"timestamp"`
}

// NewTransactionResponse maps a record to its response body.
func NewTransactionResponse(rec *domain.TransactionRecord) TransactionResponse {
	return TransactionResponse{
		ID:             rec.ID.String(),
		Amount:         rec.Amount,
		Direction:      string(rec.Direction),
		Source:         string(rec.Source),
		Reason:         rec.Reason.String(),
		BalanceAfter:   rec.BalanceAfter,
		IdempotencyKey: rec.Key(),
		Consumed:       rec.Consumed,
		Metadata:       rec.Metadata,
		Timestamp:      rec.Timestamp.UTC().Format(time.RFC3339),
	}
}

// NewTransactionList maps a page of records.
func NewTransactionList(records []domain.TransactionRecord) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(records))
	for i := range records {
		out = append(out, NewTransactionResponse(&records[i]))
	}
	return out
}

// CreditResponse wraps a credit outcome. Replayed marks a duplicate request
// answered with the original record.
type CreditResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// NewCreditResponse maps a credit result.
func NewCreditResponse(res *ports.CreditResult) CreditResponse {
	return CreditResponse{
		Transaction: NewTransactionResponse(res.Record),
		Replayed:    res.Replayed,
	}
}

// BatchResponse is one live coin batch.
type BatchResponse struct {
	ID              string `json:"id"`
	Source          string `json:"source"`
	OriginalAmount  int64  `json:"original_amount"`
	RemainingAmount int64  `json:"remaining_amount"`
	CreatedAt       string `json:"created_at"`
	ExpiresAt       string `json:"expires_at"`
}

// ExpiringResponse summarizes coins about to expire.
type ExpiringResponse struct {
	Amount          int64  `json:"amount"`
	ExpiresAt       string `json:"expires_at"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

// BalanceResponse is the user-facing balance.
type BalanceResponse struct {
	UserID       string            `json:"user_id"`
	TotalBalance int64             `json:"total_balance"`
	Batches      []BatchResponse   `json:"batches"`
	ExpiringSoon *ExpiringResponse `json:"expiring_soon,omitempty"`
	LastUpdated  string            `json:"last_updated"`
}

// NewBalanceResponse maps a balance view.
func NewBalanceResponse(v *ports.BalanceView) BalanceResponse {
	resp := BalanceResponse{
		UserID:       v.UserID,
		TotalBalance: v.TotalBalance,
		Batches:      make([]BatchResponse, 0, len(v.Batches)),
		LastUpdated:  v.LastUpdated.UTC().Format(time.RFC3339),
	}
	for _, b := range v.Batches {
		resp.Batches = append(resp.Batches, BatchResponse{
			ID:              b.ID,
			Source:          string(b.Source),
			OriginalAmount:  b.OriginalAmount,
			RemainingAmount: b.RemainingAmount,
			CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:       b.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	if w := v.ExpiringSoon; w != nil {
		resp.ExpiringSoon = &ExpiringResponse{
			Amount:          w.ExpiringAmount,
			ExpiresAt:       w.EarliestExpiry.UTC().Format(time.RFC3339),
			DaysUntilExpiry: w.DaysUntilExpiry,
		}
	}
	return resp
}

// JobSummaryResponse is the outcome of a manually triggered job.
type JobSummaryResponse struct {
	Job        string `json:"job"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Amount     int64  `json:"amount"`
	Pages      int    `json:"pages"`
	Resumed    bool   `json:"resumed"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
}

// NewJobSummaryResponse maps a job summary.
func NewJobSummaryResponse(s *domain.JobSummary) JobSummaryResponse {
	return JobSummaryResponse{
		Job:        string(s.Job),
		Processed:  s.Processed,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Amount:     s.Amount,
		Pages:      s.Pages,
		Resumed:    s.Resumed,
		StartedAt:  s.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: s.Duration.Milliseconds(),
	}
}
