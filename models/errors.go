package models

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is the reason attached to a ValidationError for a blank search query.
var ErrEmptyQuery = errors.New("query is empty")

// ValidationError rejects malformed input before any side effect happens.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// EmptyQueryError is returned by searches whose query is blank after trimming.
func EmptyQueryError() *ValidationError {
	return &ValidationError{Field: "query", Reason: ErrEmptyQuery.Error(), Err: ErrEmptyQuery}
}

// NotFoundError reports an unknown session id.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

// ProviderUnavailableError wraps a failure of an external capability
// (paper discovery, text analysis or generation).
type ProviderUnavailableError struct {
	Capability string
	Err        error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable [%s]: %v", e.Capability, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// InconsistencyError marks a session whose state can no longer be trusted.
// It is fatal for that session only.
type InconsistencyError struct {
	SessionID string
	Reason    string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("session %q is inconsistent: %s", e.SessionID, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// IsProviderUnavailable reports whether err is (or wraps) a ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var p *ProviderUnavailableError
	return errors.As(err, &p)
}

// IsInconsistency reports whether err is (or wraps) an InconsistencyError.
func IsInconsistency(err error) bool {
	var i *InconsistencyError
	return errors.As(err, &i)
}
