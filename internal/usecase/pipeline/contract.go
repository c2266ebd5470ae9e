package pipeline

import (
	"context"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain/assembly"
	"github.com/docuchat/contextpipe/internal/domain/document"
	"github.com/docuchat/contextpipe/internal/domain/query"
)

// Dispatcher fans the query out to enabled backends.
type Dispatcher interface {
	Dispatch(ctx context.Context, q *query.Query) (
		map[backend.ID][]backend.Hit, map[backend.ID]error, error,
	)
}

// Merger projects backend hits into canonical documents.
type Merger interface {
	Merge(hits map[backend.ID][]backend.Hit, q *query.Query) []*document.Document
}

// Deduplicator collapses duplicate documents, merging provenance.
type Deduplicator interface {
	Dedupe(docs []*document.Document) []*document.Document
}

// Reranker orders documents by unified relevance.
type Reranker interface {
	Rerank(ctx context.Context, docs []*document.Document, q *query.Query, dispatched int) []*document.Document
}

// Assembler packs ranked documents into a length-bounded context.
type Assembler interface {
	Assemble(docs []*document.Document, budget int) (assembly.Context, error)
}
