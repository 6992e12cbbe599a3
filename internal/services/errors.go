package services

import (
	"errors"
	"fmt"

	"financeiro/internal/source"
)

var (
	// ErrNoIdentity means the acting user could not be resolved. It is fatal
	// for every data operation.
	ErrNoIdentity = errors.New("user not identified")

	ErrInsufficientBalance = errors.New("investment exceeds available balance")
	ErrNotFound            = source.ErrNotFound
)

// ValidationError is a rejected input. No backend call was made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// BackendError is a failed call to the data source. Any optimistic change
// it would have confirmed has been rolled back.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }
