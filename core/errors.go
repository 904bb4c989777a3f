package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput       = "SYNC_BAD_INPUT"
	SyncErrorNotFound       = "SYNC_NOT_FOUND"
	SyncErrorTransport      = "SYNC_TRANSPORT_FAILURE"
	SyncErrorRemoteRejected = "SYNC_REMOTE_REJECTED"
	SyncErrorLocalRejected  = "SYNC_LOCAL_CONSTRAINT"
	SyncErrorCorrelation    = "SYNC_CORRELATION_FAILURE"
	SyncErrorCycleDetected  = "SYNC_CYCLE_DETECTED"
	SyncErrorRateLimited    = "SYNC_RATE_LIMITED"
	SyncErrorInternal       = "SYNC_INTERNAL_ERROR"
)

// NewBadInputError marks a malformed engine input (missing reference or
// revision on a record handed to a strategy).
func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(SyncErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewTransportError marks a remote call that failed for reasons unrelated to
// the addressed record; the job layer retries these with backoff.
func NewTransportError(message string, cause error) *goerrors.Error {
	return syncError(cause, goerrors.CategoryExternal, message, http.StatusBadGateway, SyncErrorTransport)
}

// NewNotFoundError marks a reference that does not resolve on the addressed
// side. Distinct from transport failures so callers can tell "doesn't exist"
// from "couldn't check".
func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(SyncErrorNotFound)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewRemoteRejectedError marks a payload the remote system refused. Not
// retryable; surfaced to the operator backlog.
func NewRemoteRejectedError(message string, cause error) *goerrors.Error {
	return syncError(cause, goerrors.CategoryValidation, message, http.StatusUnprocessableEntity, SyncErrorRemoteRejected)
}

// NewLocalConstraintError marks a local write that violated a local
// constraint. Not retryable.
func NewLocalConstraintError(message string, cause error) *goerrors.Error {
	return syncError(cause, goerrors.CategoryConflict, message, http.StatusConflict, SyncErrorLocalRejected)
}

// NewCorrelationError marks malformed correlation input. Always a data or
// programming bug, never retried.
func NewCorrelationError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(SyncErrorCorrelation)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewCycleDetectedError marks a hierarchy walk that revisited an entity.
func NewCycleDetectedError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(SyncErrorCycleDetected)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewRateLimitedError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(SyncErrorRateLimited)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func syncError(cause error, category goerrors.Category, message string, code int, textCode string) *goerrors.Error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	return err.WithCode(code).WithTextCode(textCode)
}

// IsRetryable reports whether the job queue should re-attempt the operation.
// Only transport-class and rate-limit failures qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.Category {
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return true
	default:
		return false
	}
}

func IsNotFound(err error) bool {
	return hasTextCode(err, SyncErrorNotFound)
}

func IsRemoteRejected(err error) bool {
	return hasTextCode(err, SyncErrorRemoteRejected)
}

func IsLocalConstraint(err error) bool {
	return hasTextCode(err, SyncErrorLocalRejected)
}

func IsCorrelationFailure(err error) bool {
	return hasTextCode(err, SyncErrorCorrelation)
}

func IsCycleDetected(err error) bool {
	return hasTextCode(err, SyncErrorCycleDetected)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(rich.TextCode), textCode)
}
