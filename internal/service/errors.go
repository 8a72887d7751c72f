package service

import (
	"errors"

	"coin-ledger/internal/core/domain"
	"coin-ledger/pkg/apperror"
)

// toAppError maps ledger errors onto the API error catalog. The domain error
// stays in the chain so callers can still match it with errors.Is.
func toAppError(err error) error {
	var appErr *apperror.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidSource):
		return apperror.ErrInvalidAmount().WithErr(err)
	case errors.Is(err, domain.ErrInvalidExpiration):
		return apperror.ErrInvalidExpiration().WithErr(err)
	case errors.Is(err, domain.ErrInsufficientBalance):
		return apperror.ErrInsufficientBalance().WithErr(err)
	case errors.Is(err, domain.ErrDuplicateKey):
		return apperror.ErrAlreadyProcessed().WithErr(err)
	case errors.Is(err, domain.ErrWriteConflict):
		return apperror.ErrWriteConflict(err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		return apperror.ErrStorageUnavailable(err)
	default:
		return apperror.InternalError(err)
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorKind(err)
}
