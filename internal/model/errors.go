package model

import (
	"errors"
	"fmt"
)

// Error categories. Wrapped errors are matched with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError reports a missing or malformed input field.
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

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError reports a deduction larger than the on-hand quantity.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d items available in stock, requested %d", e.Available, e.Requested)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
