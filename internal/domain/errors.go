package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrServerOffline indicates the backend is unreachable (no response received)
	ErrServerOffline = errors.New("backend is unreachable")

	// ErrAuthFailed indicates the bearer token was rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrNotAuthenticated indicates no token is stored yet
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrOperationInProgress indicates a tracked operation has not reached a terminal state
	ErrOperationInProgress = errors.New("an operation is already in progress")

	// ErrPopupBlocked indicates the authorization window could not be opened
	ErrPopupBlocked = errors.New("authorization window could not be opened")

	// ErrValidation is wrapped by every client-side validation failure
	ErrValidation = errors.New("validation failed")
)

// ValidationError is a client-side validation failure. It is raised before any
// network call is made. Message is shown to the user verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// String includes the field for logs.
func (e *ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
