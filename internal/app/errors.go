package app

import (
	"errors"
	"fmt"
	"net/http"

	"missioncontrol/api/internal/event"
	"missioncontrol/api/internal/ledger"
	"missioncontrol/api/internal/store"
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

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func conflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func storageError(err error) *DomainError {
	return domainError(http.StatusServiceUnavailable, "STORAGE_ERROR", err.Error(), map[string]any{"retryable": true})
}

// classify turns errors from the store, ledger and event boundary into
// DomainErrors. Anything unrecognised is a retryable storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var validation *event.ValidationError
	switch {
	case errors.As(err, &validation):
		return validationError("Invalid event", validation.Problems)
	case errors.Is(err, event.ErrInvalid), errors.Is(err, ledger.ErrInvalidCredit):
		return validationError(err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		return notFound("Entity not found")
	case errors.Is(err, store.ErrCompleted):
		return conflict("Entity is completed")
	case errors.Is(err, store.ErrUnassigned):
		return conflict("Entity is unassigned")
	}
	return storageError(err)
}
