// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Upload errors.
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrCancelled           = errors.New("processing cancelled by user")

	// Parsing errors. ErrParseFallback tags classification results that were
	// defaulted because no parse strategy succeeded; it is logged but never
	// surfaced to the upload caller.
	ErrParseFallback = errors.New("model response did not parse")

	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
