package availability

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAvailabilityUnavailable means no candidate day of a scan could be loaded.
	ErrAvailabilityUnavailable = errors.New("availability could not be loaded")

	ErrServiceNotFound = errors.New("service not found")
)

type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func inputErrorf(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
