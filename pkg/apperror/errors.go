package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithErr returns a copy of e carrying err as its cause.
func (e *AppError) WithErr(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidClientID() *AppError {
	return New("SEC_001", "Invalid client id", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Coin Ledger (COIN) ----

func ErrInsufficientBalance() *AppError {
	return New("COIN_001", "Not enough coins", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("COIN_002", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidExpiration() *AppError {
	return New("COIN_003", "Expiration must be in the future", http.StatusBadRequest)
}

func ErrAlreadyProcessed() *AppError {
	return New("COIN_004", "Already processed", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("COIN_005", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrUnknownReward() *AppError {
	return New("COIN_006", "Unknown reward type", http.StatusBadRequest)
}

func ErrUnknownPackage() *AppError {
	return New("COIN_007", "Unknown coin package", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrWriteConflict(err error) *AppError {
	return Wrap("SYS_002", "Concurrent update, please retry", http.StatusServiceUnavailable, err)
}

func ErrStorageUnavailable(err error) *AppError {
	return Wrap("SYS_003", "Storage temporarily unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a COIN_002-style validation error.
func Validation(message string) *AppError {
	return New("COIN_002", message, http.StatusBadRequest)
}
