package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks a required column that was NULL at the source.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedField marks a value outside the domain its classifier accepts.
	ErrMalformedField = errors.New("malformed field")
	// ErrFieldTooLong marks a cleaned text field over its length limit.
	ErrFieldTooLong = errors.New("field too long")
)

// FieldError reports which field caused a record to be dropped.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// DropReason returns a short metric-friendly label for a rejection error.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrMalformedField):
		return "malformed_field"
	case errors.Is(err, ErrFieldTooLong):
		return "field_too_long"
	default:
		return "other"
	}
}
