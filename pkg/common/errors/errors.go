package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the taskpool library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNilTask indicates that a nil task was submitted
	ErrNilTask = errors.New("task cannot be nil")
)

// ValidationError describes a configuration field that failed validation.
type ValidationError struct {
	Module string      // component reporting the error, e.g. "pool"
	Field  string      // name of the offending field
	Value  interface{} // the rejected value
	Reason string      // why the value was rejected
	Hint   string      // optional guidance for fixing the value
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a hint to the error and returns it.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: invalid %s=%v (%s) - %s", e.Module, e.Field, e.Value, e.Reason, e.Hint)
	}
	return fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is treat every ValidationError as ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}
