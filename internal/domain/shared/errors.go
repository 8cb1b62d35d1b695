// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation        = errors.New("validation error")
	ErrInvalidID         = errors.New("invalid ID")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyValue        = errors.New("value cannot be empty")
	ErrNegativeValue     = errors.New("value cannot be negative")
	ErrValueOutOfRange   = errors.New("value out of range")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrInvalidAssessment = errors.New("invalid assessment")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Store errors
	ErrPersistence = errors.New("persistence error")
	ErrTimeout     = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "attendance", "grade", "finance"
	Op      string // Operation that failed, e.g., "Upsert", "RecordBatch"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validationf builds a validation error with a formatted message.
func Validationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a store failure. Errors that already carry a domain kind
// (not found, state transition, validation) are returned unchanged so callers
// keep the more specific classification.
func Persistence(domain, op, message string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsValidation(err) || errors.Is(err, ErrStateTransition) || errors.Is(err, ErrPersistence) {
		return err
	}
	return WrapError(domain, op, ErrPersistence, message, err)
}

// Record store errors
var (
	ErrAttendanceNotFound  = NewDomainError("attendance", "Find", ErrNotFound, "attendance record not found")
	ErrAssessmentNotFound  = NewDomainError("grade", "Find", ErrNotFound, "assessment record not found")
	ErrTransactionNotFound = NewDomainError("finance", "Find", ErrNotFound, "financial transaction not found")
	ErrCourseNotFound      = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrEmptyBatch          = NewDomainError("batch", "Validate", ErrValidation, "batch contains no records")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidAssessment) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsPersistence checks if the error came from the record store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrTimeout)
}

// IsStateTransition checks if the error is a rejected status change.
func IsStateTransition(err error) bool {
	return errors.Is(err, ErrStateTransition)
}
