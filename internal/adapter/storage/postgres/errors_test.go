package postgres

import (
	"context"
	"errors"
	"testing"

	"coin-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrWriteConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrWriteConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrWriteConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, domain.ErrStorageUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, domain.ErrStorageUnavailable},
		{"deadline", context.DeadlineExceeded, domain.ErrStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "driver error stays in the chain")
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	err := classify("op", &pgconn.PgError{Code: "23503"})
	assert.False(t, errors.Is(err, domain.ErrWriteConflict))
	assert.False(t, errors.Is(err, domain.ErrStorageUnavailable))
	assert.Contains(t, err.Error(), "op:")
}
