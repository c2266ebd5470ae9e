// Package vector implements the vector-similarity retrieval backend over an
// FT KNN index.
package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/db"
	"github.com/docuchat/contextpipe/internal/domain"
)

var returnFields = []string{"title", "content", "container_id", "file_type", "url"}

// Adapter retrieves documents by embedding the query and running KNN search.
type Adapter struct {
	store  db.Searcher
	embed  domain.Embedder
	index  string
	logger *zap.Logger
}

// New creates a vector search adapter.
func New(store db.Searcher, embed domain.Embedder, index string, logger *zap.Logger) *Adapter {
	return &Adapter{store: store, embed: embed, index: index, logger: logger}
}

// ID implements backend.Adapter.
func (a *Adapter) ID() backend.ID { return backend.Vector }

// Execute embeds the query text and runs a KNN search.
// Hit scores are cosine similarity in [0,1].
func (a *Adapter) Execute(ctx context.Context, req backend.Request) ([]backend.Hit, error) {
	emb, err := a.embed.Embed(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	sr, err := a.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    a.index,
		Vector:       emb.Embedding,
		K:            req.TopK,
		Filters:      req.Filters,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", a.index, err)
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
