package core

import (
	"errors"
	"strings"
)

var (
	ErrInvalidID         = errors.New("invalid expense id")
	ErrNotFound          = errors.New("expense not found")
	ErrEmptyPayload      = errors.New("no fields provided for update")
	ErrIncompletePayload = errors.New("payload is missing required fields")
)

// ValidationError carries every field-level message produced by Validate.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, " ")
}

// StoreError wraps an underlying database failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for op. Taxonomy errors pass through
// unchanged so callers can still match them with errors.Is.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyPayload) || errors.Is(err, ErrIncompletePayload) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
