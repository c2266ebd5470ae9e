// Package fulltext implements the full-text retrieval backend: BM25 ranking
// over the document body field.
package fulltext

import (
	"context"
	"fmt"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/db"
)

var returnFields = []string{"title", "content", "container_id", "file_type", "url"}

// Adapter retrieves documents by BM25 text relevance.
type Adapter struct {
	store db.Searcher
	index string
	field string
}

// New creates a full-text search adapter.
func New(store db.Searcher, index, field string) *Adapter {
	if field == "" {
		field = "content"
	}
	return &Adapter{store: store, index: index, field: field}
}

// ID implements backend.Adapter.
func (a *Adapter) ID() backend.ID { return backend.Fulltext }

// Execute runs a BM25 search with the raw query text.
// Hit scores are unbounded BM25 weights; the merger rescales them.
func (a *Adapter) Execute(ctx context.Context, req backend.Request) ([]backend.Hit, error) {
	sr, err := a.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    a.index,
		Field:        a.field,
		Query:        req.Text,
		TopK:         req.TopK,
		Filters:      req.Filters,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25 %s: %w", a.index, err)
	}

	hits := make([]backend.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, backend.Hit{
			ID:      e.Key,
			Score:   e.Score,
			Title:   e.Fields["title"],
			Content: e.Fields["content"],
			Meta: map[string]string{
				backend.MetaContainerID: e.Fields["container_id"],
				backend.MetaFileType:    e.Fields["file_type"],
				backend.MetaURL:         e.Fields["url"],
			},
		})
	}
	return hits, nil
}
