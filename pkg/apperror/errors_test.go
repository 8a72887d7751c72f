package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("COIN_001", "Not enough coins", http.StatusPaymentRequired),
			expected: "[COIN_001] Not enough coins",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("COIN_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_WithErr(t *testing.T) {
	sentinel := errors.New("insufficient balance")
	base := ErrInsufficientBalance()

	withCause := base.WithErr(sentinel)

	assert.True(t, errors.Is(withCause, sentinel))
	assert.Equal(t, "COIN_001", withCause.Code)
	assert.Nil(t, base.Err, "original must not be mutated")
}

func TestSecurityErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidClientID", ErrInvalidClientID(), "SEC_001", 401},
		{"InvalidSignature", ErrInvalidSignature(), "SEC_002", 401},
		{"TimestampExpired", ErrTimestampExpired(), "SEC_003", 403},
		{"NonceUsed", ErrNonceUsed(), "SEC_004", 403},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestCoinErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientBalance", ErrInsufficientBalance(), "COIN_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "COIN_002", 400},
		{"InvalidExpiration", ErrInvalidExpiration(), "COIN_003", 400},
		{"AlreadyProcessed", ErrAlreadyProcessed(), "COIN_004", 409},
		{"NotFound", ErrNotFound("Balance"), "COIN_005", 404},
		{"UnknownReward", ErrUnknownReward(), "COIN_006", 400},
		{"UnknownPackage", ErrUnknownPackage(), "COIN_007", 400},
		{"Validation", Validation("bad field"), "COIN_002", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	conflictErr := ErrWriteConflict(inner)
	assert.Equal(t, "SYS_002", conflictErr.Code)
	assert.Equal(t, 503, conflictErr.HTTPStatus)

	storageErr := ErrStorageUnavailable(inner)
	assert.Equal(t, "SYS_003", storageErr.Code)
	assert.Equal(t, 503, storageErr.HTTPStatus)
	assert.True(t, errors.Is(storageErr, inner))
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Transaction")
	assert.Contains(t, err.Message, "Transaction")
	assert.Equal(t, "COIN_005", err.Code)
}
