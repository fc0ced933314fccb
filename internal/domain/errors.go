package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrTransient indicates a connection-level or timeout failure that may
	// succeed on retry.
	ErrTransient = errors.New("transient upstream failure")

	// ErrMalformedResponse indicates a payload that failed to parse as its
	// declared content type. Never retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMissingData indicates an expected field, session handle, or
	// identifier was absent where its presence is required.
	ErrMissingData = errors.New("missing data")

	// ErrNotOpenAccess indicates a full-text request for an article with no
	// free full-text copy in PubMed Central.
	ErrNotOpenAccess = errors.New("not open access")

	// ErrConfiguration indicates an unreadable or invalid credential file.
	// Treated as absent configuration, not fatal.
	ErrConfiguration = errors.New("configuration error")
)

// TransientError wraps a connection error or timeout from an upstream call.
type TransientError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure calling %s: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the ErrTransient sentinel.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// MalformedResponseError wraps a payload that failed to parse.
type MalformedResponseError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the ErrMalformedResponse sentinel.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// MissingDataError reports an absent field or identifier in contexts where
// absence is escalated to an error (full-text preconditions); most extractors
// treat absence as an empty or placeholder result instead.
type MissingDataError struct {
	Entity string
	Detail string
}

// Error implements the error interface.
func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Entity, e.Detail)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *MissingDataError) Unwrap() error {
	return ErrMissingData
}

// ExternalAPIError provides details about a non-2xx response from the
// E-utilities API. Upstream-reported errors are not retried.
type ExternalAPIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// NewTransientError creates a new TransientError.
func NewTransientError(endpoint string, cause error) *TransientError {
	return &TransientError{Endpoint: endpoint, Cause: cause}
}

// NewMalformedResponseError creates a new MalformedResponseError.
func NewMalformedResponseError(endpoint string, cause error) *MalformedResponseError {
	return &MalformedResponseError{Endpoint: endpoint, Cause: cause}
}

// NewMissingDataError creates a new MissingDataError.
func NewMissingDataError(entity, detail string) *MissingDataError {
	return &MissingDataError{Entity: entity, Detail: detail}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(endpoint string, statusCode int, message string) *ExternalAPIError {
	return &ExternalAPIError{Endpoint: endpoint, StatusCode: statusCode, Message: message}
}
