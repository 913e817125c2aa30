package shared

import (
	"errors"
	"fmt"
)

// ValidationError carries field-keyed messages for malformed input.
// It is always recoverable by the caller and never persisted.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("validation failed: %s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed on %d fields", len(e.Fields))
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// InvalidStateTransitionError signals an operation attempted in a lifecycle
// state that forbids it. Surfaced verbatim to the caller, never coerced.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	Op     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s: operation %q not allowed in state %q", e.Entity, e.Op, e.From)
}

// InsufficientStockError names the offending SKU and both quantities so the
// caller can retry with a corrected amount.
type InsufficientStockError struct {
	SKU       string
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %.2f, requested %.2f", e.SKU, e.Available, e.Requested)
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Ref)
}

// ConflictError indicates a duplicate identifier or a lost concurrent commit.
type ConflictError struct {
	Entity string
	Ref    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.Ref)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is an InvalidStateTransitionError.
func IsInvalidState(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}

// IsInsufficientStock reports whether err is an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
