// Package provider integrates OpenAI-compatible model endpoints for image
// embeddings and captions.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the endpoint has no model configured.
var ErrNotConfigured = errors.New("provider not configured")

// Embedder produces a fixed-dimension embedding vector for raw image bytes.
type Embedder interface {
	Embed(ctx context.Context, imageData []byte) ([]float64, error)
}

// Captioner produces a short natural-language caption for raw image bytes.
type Captioner interface {
	Caption(ctx context.Context, imageData []byte) (string, error)
}

// ProviderError represents an error from a model provider.
type ProviderError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ProviderError) Unwrap() error { return e.Err }
