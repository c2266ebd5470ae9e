// Package multimodal implements the image retrieval backend: the query text
// is embedded with a multimodal model and matched against an image-vector
// index whose entries carry captions.
package multimodal

import (
	"context"
	"fmt"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/db"
	"github.com/docuchat/contextpipe/internal/domain"
)

var returnFields = []string{"caption", "container_id", "url"}

// Adapter retrieves images by text-to-image embedding similarity.
type Adapter struct {
	store db.Searcher
	embed domain.Embedder
	index string
}

// New creates a multimodal search adapter. embed must be a multimodal
// (CLIP-style) embedding model sharing the image index's vector space.
func New(store db.Searcher, embed domain.Embedder, index string) *Adapter {
	return &Adapter{store: store, embed: embed, index: index}
}

// ID implements backend.Adapter.
func (a *Adapter) ID() backend.ID { return backend.Multimodal }

// Execute embeds the query text and runs KNN over the image index.
// The caption doubles as the document content so downstream stages can
// treat image hits like any other document.
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
		return nil, fmt.Errorf("search images %s: %w", a.index, err)
	}

	hits := make([]backend.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		caption := e.Fields["caption"]
		hits = append(hits, backend.Hit{
			ID:      e.Key,
			Score:   e.Score,
			Title:   caption,
			Content: caption,
			Meta: map[string]string{
				backend.MetaContainerID: e.Fields["container_id"],
				backend.MetaFileType:    "image",
				backend.MetaURL:         e.Fields["url"],
			},
		})
	}
	return hits, nil
}
