package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ConstraintViolation holds field-level failures that make an event or
// dimension row unacceptable to the ledger.
type ConstraintViolation struct {
	Errors []FieldError
}

// FieldError represents a single failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the violation as a semicolon-separated list of field messages.
func (e *ConstraintViolation) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "constraint violation: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field errors were collected.
func (e *ConstraintViolation) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field failure.
func (e *ConstraintViolation) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// PartitionBoundaryError reports a timestamp outside every writable partition
// (strict mode), or a scheduling race that would produce a colliding range.
type PartitionBoundaryError struct {
	At     time.Time
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *PartitionBoundaryError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("partition boundary: %s", e.Reason)
	}
	return fmt.Sprintf("partition boundary: %s outside [%s, %s)",
		e.At.Format(time.RFC3339), e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// ConcurrencyConflict reports contention that the transaction layer could not
// resolve within its retry budget. Callers normally never see it; the append
// path retries serialization failures transparently.
type ConcurrencyConflict struct {
	Resource string
	Err      error
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrency conflict on %s: %v", e.Resource, e.Err)
}

func (e *ConcurrencyConflict) Unwrap() error { return e.Err }

// AuditWriteError is fatal to the enclosing transaction: a mutation whose
// audit record cannot be written must not commit.
type AuditWriteError struct {
	Subject string
	Err     error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write for %s: %v", e.Subject, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }
