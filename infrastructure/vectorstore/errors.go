package vectorstore

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates a vector whose length does not match the
// configured store dimension. It is raised locally, before any network call.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// StoreError is a failure reported by the vector store.
type StoreError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// NewStoreError creates a StoreError.
func NewStoreError(operation string, statusCode int, message string, err error) *StoreError {
	return &StoreError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Error implements error.
func (e *StoreError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("vector store %s: status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("vector store %s: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *StoreError) Unwrap() error { return e.Err }
