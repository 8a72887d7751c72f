package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidExpiration   = errors.New("expiration must be after the current instant")
	ErrInvalidSource       = errors.New("unknown coin source")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateKey        = errors.New("idempotency key already used")
	ErrWriteConflict       = errors.New("concurrent write conflict")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// InsufficientBalanceError carries the amounts involved in a rejected debit.
type InsufficientBalanceError struct {
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ErrorKind names the ledger error class of err for logs and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSource):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidExpiration):
		return "invalid_expiration"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrWriteConflict):
		return "write_conflict"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}

// IsRetryable reports whether retrying the same operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrWriteConflict)
}
