// Package keyword implements the keyword-match retrieval backend: the query
// is split into individual terms matched against a curated keywords field.
package keyword

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/db"
)

var returnFields = []string{"title", "content", "container_id", "file_type", "url"}

// Adapter retrieves documents whose keyword field matches query terms.
type Adapter struct {
	store db.Searcher
	index string
	field string
}

// New creates a keyword search adapter.
func New(store db.Searcher, index, field string) *Adapter {
	if field == "" {
		field = "keywords"
	}
	return &Adapter{store: store, index: index, field: field}
}

// ID implements backend.Adapter.
func (a *Adapter) ID() backend.ID { return backend.Keyword }

// Execute matches individual query terms (OR semantics) against the keyword
// field. Terms shorter than two runes are dropped; an all-stopword query
// returns no hits rather than matching everything.
func (a *Adapter) Execute(ctx context.Context, req backend.Request) ([]backend.Hit, error) {
	terms := splitTerms(req.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	sr, err := a.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    a.index,
		Field:        a.field,
		Query:        strings.Join(terms, "|"),
		TopK:         req.TopK,
		Filters:      req.Filters,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search keywords %s: %w", a.index, err)
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

// splitTerms extracts lowercase word terms of length >= 2 from the query.
func splitTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}
