package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals a blank or whitespace-only query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrBackendTimeout signals a backend call that exceeded its timeout.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendError signals a malformed or erroring backend response.
	ErrBackendError = errors.New("backend error")
	// ErrNoRetrievalPossible signals that every enabled backend failed.
	ErrNoRetrievalPossible = errors.New("no retrieval possible")
	// ErrNoQualifyingResults signals that no retrieved document passed the relevance floor.
	ErrNoQualifyingResults = errors.New("no qualifying results")
	// ErrBudgetTooSmall signals that no candidate fits the length budget.
	ErrBudgetTooSmall = errors.New("length budget too small")
	// ErrUnknownBackend signals a backend id with no registered adapter.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// BackendFailure wraps a per-backend error with the backend that produced it.
type BackendFailure struct {
	Backend string
	Err     error
}

func (e *BackendFailure) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendFailure) Unwrap() error { return e.Err }

// NewBackendFailure creates a backend failure error.
func NewBackendFailure(backend string, err error) error {
	return &BackendFailure{Backend: backend, Err: err}
}
