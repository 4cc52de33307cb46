package domain

import (
	"errors"
)

// ValidationError reports malformed command input, rejected before any event is
// emitted. The caller can recover by correcting the input.
type ValidationError struct {
	Rule string
}

// NewValidationError creates a ValidationError naming the violated input rule.
func NewValidationError(rule string) *ValidationError {
	return &ValidationError{Rule: rule}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Rule
}

// PreconditionError reports a business-rule violation given the aggregate's current
// state. It is raised by command methods before emit, so state and the uncommitted
// buffer are untouched. The same aggregate can be retried after a valid prior step.
type PreconditionError struct {
	Rule string
}

// NewPreconditionError creates a PreconditionError naming the violated business rule.
func NewPreconditionError(rule string) *PreconditionError {
	return &PreconditionError{Rule: rule}
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Rule
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsPreconditionError reports whether err is (or wraps) a PreconditionError.
func IsPreconditionError(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}
