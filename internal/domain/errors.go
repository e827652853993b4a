package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNoURLs        = errors.New("no download URLs configured")
	ErrDuplicateTask = errors.New("duplicate destination for task")
)

// RecoverableError marks a failure a later attempt may clear: transient
// network or server trouble.
type RecoverableError struct {
	Err    error
	Reason string
}

// Error returns the error message
func (e *RecoverableError) Error() string {
	if e.Reason != "" {
		if e.Err != nil {
			return e.Reason + ": " + e.Err.Error()
		}
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "recoverable failure"
}

// Unwrap returns the underlying error
func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(err error, reason string) *RecoverableError {
	return &RecoverableError{Err: err, Reason: reason}
}

// FatalError marks a failure retrying cannot fix: the requested resource
// itself or the local filesystem.
type FatalError struct {
	Err    error
	Reason string
}

// Error returns the error message
func (e *FatalError) Error() string {
	if e.Reason != "" {
		if e.Err != nil {
			return e.Reason + ": " + e.Err.Error()
		}
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "fatal failure"
}

// Unwrap returns the underlying error
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError creates a new fatal error
func NewFatalError(err error, reason string) *FatalError {
	return &FatalError{Err: err, Reason: reason}
}

// IsRecoverable returns true if a later attempt may clear the error
func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// IsFatal returns true if retrying cannot fix the error
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// FailureReason returns the classification reason attached to err, if any
func FailureReason(err error) string {
	var re *RecoverableError
	if errors.As(err, &re) {
		return re.Reason
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// ClassifyStatus maps a non-success HTTP status to a domain error. Client
// errors will not change on retry; server errors might.
func ClassifyStatus(code int, url string) error {
	err := fmt.Errorf("%s: unexpected status %d", url, code)
	if code >= 400 && code < 500 {
		return NewFatalError(err, fmt.Sprintf("HTTP %d", code))
	}
	return NewRecoverableError(err, fmt.Sprintf("HTTP %d", code))
}
