package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets an id the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for missing or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError describes malformed or out-of-range input for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidation reports whether err carries a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
