package utils

import "fmt"

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// InvariantError marks a broken internal invariant, such as a trade stage
// advancing past its slot cap. These indicate a bug in the caller and are
// surfaced to the operator rather than swallowed.
type InvariantError struct {
	Message string
}

// Error returns the error message string.
func (e *InvariantError) Error() string {
	return e.Message
}

// NewInvariantErrorf creates a new InvariantError with a formatted message.
func NewInvariantErrorf(format string, args ...interface{}) error {
	return &InvariantError{
		Message: fmt.Sprintf(format, args...),
	}
}
