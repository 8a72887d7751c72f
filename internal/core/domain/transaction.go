package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a record added or removed coins.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// ReasonKind is the closed classification of a ledger mutation.
type ReasonKind string

const (
	ReasonPurchase  ReasonKind = "purchase"
	ReasonReward    ReasonKind = "reward"
	ReasonAllowance ReasonKind = "allowance"
	ReasonGift      ReasonKind = "gift"
	ReasonRefund    ReasonKind = "refund"
	ReasonSpend     ReasonKind = "spend"
	ReasonExpired   ReasonKind = "expired"
)

// Valid reports whether k is one of the known reason kinds.
func (k ReasonKind) Valid() bool {
	switch k {
	case ReasonPurchase, ReasonReward, ReasonAllowance, ReasonGift,
		ReasonRefund, ReasonSpend, ReasonExpired:
		return true
	}
	return false
}

// Reason is a structured mutation reason: a kind plus optional free text,
// e.g. {spend, lessonPurchase}.
type Reason struct {
	Kind   ReasonKind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}

// String renders the reason as "kind" or "kind:detail".
func (r Reason) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ":" + r.Detail
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) Reason {
	kind, detail, _ := strings.Cut(s, ":")
	return Reason{Kind: ReasonKind(kind), Detail: detail}
}

// Consumption is the amount a debit took from one batch.
type Consumption struct {
	BatchID string `json:"batch_id"`
	Amount  int64  `json:"amount"`
}

// TransactionRecord is the append-only log entry written for every mutation.
type TransactionRecord struct {
	ID             uuid.UUID         `json:"id"`
	UserID         string            `json:"user_id"`
	Amount         int64             `json:"amount"` // Magnitude, always positive
	Direction      Direction         `json:"direction"`
	Source         Source            `json:"source,omitempty"` // Credits only
	Reason         Reason            `json:"reason"`
	BalanceAfter   int64             `json:"balance_after"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	BatchID        string            `json:"batch_id,omitempty"`
	Consumed       []Consumption     `json:"consumed,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// SignedAmount returns the amount with a negative sign for debits.
func (r *TransactionRecord) SignedAmount() int64 {
	if r.Direction == DirectionDebit {
		return -r.Amount
	}
	return r.Amount
}

// Key returns the idempotency key or "" when the record has none.
func (r *TransactionRecord) Key() string {
	if r.IdempotencyKey == nil {
		return ""
	}
	return *r.IdempotencyKey
}
