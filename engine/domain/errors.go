package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline stage failures.
var (
	ErrInsightMalformed = errors.New("insight output malformed")
	ErrEmptyQuery       = errors.New("insight query is empty")
	ErrEmptyEmbedding   = errors.New("embedding is empty")
	ErrNoMatches        = errors.New("no matches found")
	ErrMissingName      = errors.New("name is required")
	ErrMissingEmail     = errors.New("email is required")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Wrapped)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Wrapped: wrapped}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
