package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrConflict          = errors.New("concurrent update")
	ErrForbidden         = errors.New("forbidden")

	// Unlock gate
	ErrPaymentRequired = errors.New("payment required")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrStillLocked     = errors.New("still locked pending review")
)

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
