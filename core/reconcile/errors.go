package reconcile

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run, divergence or record does not exist.
var ErrNotFound = errors.New("not found")

// InvalidScopeError is returned when records from different terminals or
// periods are passed to the matcher together. No matching is attempted.
type InvalidScopeError struct {
	Expected Scope
	Found    Scope
	RecordID string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope: record %s belongs to %s/%s, expected %s/%s",
		e.RecordID, e.Found.TerminalID, e.Found.Period, e.Expected.TerminalID, e.Expected.Period)
}

// ValidationError reports a single invalid field so the caller can correct it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

// ConflictError is returned when an optimistic check fails: a divergence that is
// no longer pending, or a scope that already has a run in flight.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("conflict: %s %s", e.Resource, e.Reason)
	}
	return fmt.Sprintf("conflict: %s %s %s", e.Resource, e.ID, e.Reason)
}

// PersistenceError wraps a storage failure. The operation it names was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsInvalidScope reports whether err is or wraps an *InvalidScopeError.
func IsInvalidScope(err error) bool {
	var target *InvalidScopeError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
