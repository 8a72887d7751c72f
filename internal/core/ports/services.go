package ports

import (
	"context"
	"time"

	"coin-ledger/internal/core/domain"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT token operations for app users.
type TokenService interface {
	Generate(userID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached record JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReservationStore holds short-lived in-flight claims on idempotency keys so
// racing duplicates fail before opening a database transaction.
type ReservationStore interface {
	// Reserve returns false if another owner currently holds the key.
	Reserve(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops the claim if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, clientID string, nonce string, ttl time.Duration) (bool, error)
}

// CursorStore checkpoints job progress so an interrupted run resumes.
type CursorStore interface {
	Load(ctx context.Context, runKey string) (string, error) // "" when no checkpoint exists
	Save(ctx context.Context, runKey string, cursor string, ttl time.Duration) error
	Clear(ctx context.Context, runKey string) error
}

// PushSender hands a notification to the push provider.
type PushSender interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// --- Service Ports (Business Logic) ---

// Notifier delivers user notifications after a ledger mutation committed.
// It is fire-and-forget: failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// LedgerService defines the request-driven ledger operations.
type LedgerService interface {
	Credit(ctx context.Context, req CreditRequest) (*CreditResult, error)
	Spend(ctx context.Context, req SpendRequest) (*domain.TransactionRecord, error)
	CreditPurchase(ctx context.Context, req PurchaseRequest) (*CreditResult, error)
	ClaimReward(ctx context.Context, req RewardClaimRequest) (*CreditResult, error)
	GrantAllowance(ctx context.Context, sub domain.Subscription, at time.Time) (*CreditResult, error)
	SweepUser(ctx context.Context, userID string, now time.Time) (*SweepOutcome, error)
	GetBalance(ctx context.Context, userID string) (*BalanceView, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.TransactionRecord, *TransactionCursor, error)
}

// CreditRequest is a direct credit (admin gift, refund, promotional coins).
type CreditRequest struct {
	UserID         string
	Amount         int64
	Source         domain.Source
	Reason         domain.Reason
	ExpiresAt      *time.Time // nil = default expiration policy
	IdempotencyKey string     // Optional
	Metadata       map[string]string
}

// SpendRequest debits coins for a purchasable item.
type SpendRequest struct {
	UserID string
	Amount int64
	Item   string // Reason detail, e.g. "superLike"
}

// PurchaseRequest credits a verified store purchase.
type PurchaseRequest struct {
	UserID        string
	PackageID     string
	PurchaseToken string
	Platform      domain.Platform
}

// RewardClaimRequest grants a catalog reward.
type RewardClaimRequest struct {
	UserID         string
	Reward         domain.RewardType
	ReferredUserID string // Required for refer_friend
}

// CreditResult is the outcome of a credit. Replayed is true when the
// idempotency key had already been used and Record is the original entry.
type CreditResult struct {
	Record   *domain.TransactionRecord
	Replayed bool
}

// SweepOutcome reports what a per-user sweep removed.
type SweepOutcome struct {
	ExpiredAmount int64
	PrunedBatches int
	Record        *domain.TransactionRecord // nil when nothing expired
}

// BalanceView is the user-facing balance.
type BalanceView struct {
	UserID       string                `json:"user_id"`
	TotalBalance int64                 `json:"total_balance"`
	Batches      []domain.CoinBatch    `json:"batches"`
	ExpiringSoon *domain.ExpiryWarning `json:"expiring_soon,omitempty"`
	LastUpdated  time.Time             `json:"last_updated"`
}

// JobService runs the periodic ledger jobs over all users.
type JobService interface {
	Run(ctx context.Context, job domain.JobName) (*domain.JobSummary, error)
	SweepExpired(ctx context.Context) (*domain.JobSummary, error)
	SendExpiryWarnings(ctx context.Context) (*domain.JobSummary, error)
	GrantMonthlyAllowances(ctx context.Context) (*domain.JobSummary, error)
}
