package engine

import (
	"errors"
	"fmt"

	"github.com/krunaldodiya/tcc-manager/internal/discovery"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/mutator"
	"github.com/krunaldodiya/tcc-manager/internal/store"
)

// SyncError is an error surfaced by the engine.
//
// Only mutation failures, rejected toggles and cache persistence failures
// reach callers as SyncErrors. Discovery and query failures are absorbed
// and degrade to "not granted".
type SyncError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the affected bundle, when any.
	Path string

	// Service is the affected service, when any.
	Service ir.ServiceKind

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeDiscoveryUnavailable  ErrorCode = "DISCOVERY_UNAVAILABLE"
	ErrCodeIdentifierNotFound    ErrorCode = "IDENTIFIER_NOT_FOUND"
	ErrCodeStoreUnavailable      ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeQueryFailed           ErrorCode = "QUERY_FAILED"
	ErrCodeMutationFailed        ErrorCode = "MUTATION_FAILED"
	ErrCodeHelperNotFound        ErrorCode = "HELPER_NOT_FOUND"
	ErrCodeHelperNotExecutable   ErrorCode = "HELPER_NOT_EXECUTABLE"
	ErrCodeVerificationExhausted ErrorCode = "VERIFICATION_EXHAUSTED"
	ErrCodeToggleInFlight        ErrorCode = "TOGGLE_IN_FLIGHT"
	ErrCodeCacheWriteFailed      ErrorCode = "CACHE_WRITE_FAILED"
	ErrCodeUnknownApp            ErrorCode = "UNKNOWN_APP"
	ErrCodeInvalidService        ErrorCode = "INVALID_SERVICE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first SyncError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsInFlightError reports whether a toggle was rejected because another
// toggle for the same (path, service) is running.
func IsInFlightError(err error) bool {
	return CodeOf(err) == ErrCodeToggleInFlight
}

// IsMutationError reports whether err is any failed grant or revoke.
func IsMutationError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMutationFailed, ErrCodeHelperNotFound, ErrCodeHelperNotExecutable,
		ErrCodeIdentifierNotFound, ErrCodeStoreUnavailable:
		return true
	}
	return false
}

// IsCacheError reports whether err is a cache persistence failure.
func IsCacheError(err error) bool {
	return CodeOf(err) == ErrCodeCacheWriteFailed
}

// classify maps a leaf-package error onto an error code.
func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, mutator.ErrHelperNotFound):
		return ErrCodeHelperNotFound
	case errors.Is(err, mutator.ErrHelperNotExecutable):
		return ErrCodeHelperNotExecutable
	case errors.Is(err, mutator.ErrIdentifierNotFound):
		return ErrCodeIdentifierNotFound
	case errors.Is(err, store.ErrStoreUnavailable):
		return ErrCodeStoreUnavailable
	case errors.Is(err, store.ErrQueryFailed):
		return ErrCodeQueryFailed
	case errors.Is(err, discovery.ErrDiscoveryUnavailable):
		return ErrCodeDiscoveryUnavailable
	default:
		return ErrCodeMutationFailed
	}
}

// newMutationError describes a failed toggle with its action and service.
func newMutationError(path string, service ir.ServiceKind, grant bool, err error) *SyncError {
	return &SyncError{
		Code:    classify(err),
		Message: fmt.Sprintf("could not %s %s access for %s", mutator.ActionFor(grant), service.Label(), ir.AppName(path)),
		Path:    path,
		Service: service,
		Err:     err,
	}
}

func newInFlightError(path string, service ir.ServiceKind) *SyncError {
	return &SyncError{
		Code:    ErrCodeToggleInFlight,
		Message: fmt.Sprintf("%s change for %s already in progress", service.Label(), ir.AppName(path)),
		Path:    path,
		Service: service,
	}
}

func newCacheError(err error) *SyncError {
	return &SyncError{
		Code:    ErrCodeCacheWriteFailed,
		Message: "could not persist app list",
		Err:     err,
	}
}
