// Package merge projects heterogeneous backend hits into canonical
// documents with per-backend-comparable scores.
package merge

import (
	"fmt"
	"sort"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain/document"
	"github.com/docuchat/contextpipe/internal/domain/query"
)

// Service is the result merger. It neither deduplicates nor ranks; it is a
// pure normalization and projection step.
type Service struct {
	priority func(backend.ID) int
}

// New creates a merger. priority fixes the backend iteration order so the
// merge order is deterministic (never map iteration order).
func New(priority func(backend.ID) int) *Service {
	return &Service{priority: priority}
}

// Merge converts each backend's hits into documents. Per backend, hits are
// capped to the query's topK and raw scores are min-max rescaled to [0,1]
// within that backend's batch. Document ids are prefixed with the backend id
// so ids are unique before deduplication.
func (s *Service) Merge(hits map[backend.ID][]backend.Hit, q *query.Query) []*document.Document {
	ids := make([]backend.ID, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.priority(ids[i]) < s.priority(ids[j]) })

	var docs []*document.Document
	for _, id := range ids {
		batch := hits[id]
		if len(batch) > q.TopK() {
			batch = batch[:q.TopK()]
		}
		docs = append(docs, projectBatch(id, batch)...)
	}
	return docs
}

// projectBatch normalizes one backend's batch and projects it into documents.
func projectBatch(id backend.ID, batch []backend.Hit) []*document.Document {
	if len(batch) == 0 {
		return nil
	}

	lo, hi := batch[0].Score, batch[0].Score
	for _, h := range batch[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	span := hi - lo

	docs := make([]*document.Document, 0, len(batch))
	for _, h := range batch {
		norm := 1.0 // a single hit, or an all-equal batch, is fully confident within its backend
		if span > 0 {
			norm = (h.Score - lo) / span
		}
		docs = append(docs, document.New(
			fmt.Sprintf("%s/%s", id, h.ID),
			id,
			h.Title,
			h.Content,
			norm,
			metadataFrom(h.Meta),
		))
	}
	return docs
}

func metadataFrom(meta map[string]string) document.Metadata {
	return document.Metadata{
		ContainerID: meta[backend.MetaContainerID],
		FileType:    meta[backend.MetaFileType],
		URL:         meta[backend.MetaURL],
	}
}
