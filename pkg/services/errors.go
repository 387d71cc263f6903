// Package services provides the application layer over the automation engine
// and the pipeline orchestrator, with standardized error types for transport
// handlers.
package services

import (
	"errors"
	"fmt"

	"github.com/autofin/autofin/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrPreferenceNil    = errors.New("preference cannot be nil")
	ErrEmptyOwnerID     = errors.New("owner ID cannot be empty")
	ErrInvalidLevel     = errors.New("invalid automation level")
	ErrInvalidScope     = errors.New("invalid preference scope")
	ErrInvalidThreshold = errors.New("confidence threshold must be between 0 and 1")
	ErrEmptyBatch       = errors.New("run request must carry tasks or a payload")

	// Not Found (404).
	ErrRunNotFound        = errors.New("run not found")
	ErrTaskNotFound       = persistence.ErrTaskNotFound
	ErrPreferenceNotFound = persistence.ErrPreferenceNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPreferenceNil) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrInvalidLevel) ||
		errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrEmptyBatch)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrPreferenceNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
