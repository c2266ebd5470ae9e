// Package db defines the storage contracts for the index-backed retrieval
// backends. The pipeline is read-only: only search and connectivity
// operations are exposed.
package db

import (
	"context"
	"time"
)

// Store is the database facade used by the composition root.
type Store interface {
	Pinger
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KNNQuery describes a vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Filters      map[string]string // tag field -> required value, pre-filter
	ReturnFields []string
}

// TextQuery describes a BM25 text search over one field.
type TextQuery struct {
	IndexName    string
	Field        string
	Query        string
	TopK         int
	Filters      map[string]string
	ReturnFields []string
}

// SearchEntry is one raw index hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult holds raw index hits.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
