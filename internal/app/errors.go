package app

import (
	"errors"
	"fmt"
	"net/http"

	"moodsun/api/internal/account"
	"moodsun/api/internal/auth"
	"moodsun/api/internal/engine"
	"moodsun/api/internal/images"
	"moodsun/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var mismatch *engine.CountMismatchError
	if errors.As(err, &mismatch) {
		return http.StatusInternalServerError, "CONSISTENCY_FAULT", "Stored data did not change as expected", map[string]any{
			"operation": mismatch.Operation,
			"expected":  mismatch.Expected,
			"actual":    mismatch.Actual,
		}
	}
	var notFound *engine.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", map[string]any{
			"entity":  notFound.Entity,
			"ids":     notFound.IDs,
			"missing": notFound.Missing,
		}
	}
	var ownership *engine.OwnershipError
	if errors.As(err, &ownership) {
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"entity": ownership.Entity}
	}
	var invalid *engine.InvalidError
	if errors.As(err, &invalid) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", invalid.Reason, nil
	}

	switch {
	case errors.Is(err, account.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, account.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, account.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", err.Error(), nil
	case errors.Is(err, account.ErrInvalidResetToken):
		return http.StatusBadRequest, "INVALID_RESET_TOKEN", err.Error(), nil
	case errors.Is(err, account.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, "CONFLICT", "A record with the same key already exists", nil
	case errors.Is(err, images.ErrDisabled):
		return http.StatusServiceUnavailable, "IMAGES_UNAVAILABLE", "Image storage not configured", nil
	case errors.Is(err, images.ErrUnsupportedType):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
