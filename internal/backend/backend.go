// Package backend defines the uniform adapter contract shared by every
// retrieval backend and the priority-ordered registry that holds them.
package backend

import (
	"context"
	"fmt"

	"github.com/docuchat/contextpipe/internal/domain"
)

// ID identifies one retrieval backend.
type ID string

// Known backend ids.
const (
	Vector     ID = "vector"
	Keyword    ID = "keyword"
	Fulltext   ID = "fulltext"
	Web        ID = "web"
	Multimodal ID = "multimodal"
)

// IsValid reports whether the id names a known backend.
func (id ID) IsValid() bool {
	switch id {
	case Vector, Keyword, Fulltext, Web, Multimodal:
		return true
	}
	return false
}

// Metadata keys adapters may set on hits.
const (
	MetaContainerID = "container_id"
	MetaFileType    = "file_type"
	MetaURL         = "url"
)

// Request is the uniform call handed to every adapter.
// Timeouts and deadlines are carried on the context by the dispatcher.
type Request struct {
	Text    string
	Filters map[string]string
	TopK    int
}

// Hit is a single backend-native result before normalization.
// Score is in whatever scale the backend uses; the merger rescales it.
type Hit struct {
	ID      string
	Score   float64
	Title   string
	Content string
	Meta    map[string]string
}

// Adapter executes a retrieval call against one backend.
type Adapter interface {
	ID() ID
	Execute(ctx context.Context, req Request) ([]Hit, error)
}

// Registry holds adapters in a fixed priority order. Priority decides
// merge order and rerank tie-breaks, so it must be configuration-driven
// and stable across runs.
type Registry struct {
	order    []ID
	rank     map[ID]int
	adapters map[ID]Adapter
}

// NewRegistry creates a registry with the given priority order.
func NewRegistry(priority []ID) *Registry {
	rank := make(map[ID]int, len(priority))
	for i, id := range priority {
		rank[id] = i
	}
	return &Registry{
		order:    append([]ID(nil), priority...),
		rank:     rank,
		adapters: make(map[ID]Adapter),
	}
}

// Register adds an adapter. Adapters for ids outside the priority order
// sort after all prioritized ones.
func (r *Registry) Register(a Adapter) {
	id := a.ID()
	if _, ok := r.rank[id]; !ok {
		r.rank[id] = len(r.order)
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
}

// Get returns the adapter for id.
func (r *Registry) Get(id ID) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// Priority returns the priority rank of id (lower sorts first).
// Unknown ids sort last.
func (r *Registry) Priority(id ID) int {
	if p, ok := r.rank[id]; ok {
		return p
	}
	return len(r.order)
}

// IDs returns all registered backend ids in priority order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.adapters))
	for _, id := range r.order {
		if _, ok := r.adapters[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Select resolves the requested ids to adapters in priority order.
// A nil or empty request selects every registered adapter.
func (r *Registry) Select(ids []ID) ([]Adapter, error) {
	if len(ids) == 0 {
		out := make([]Adapter, 0, len(r.adapters))
		for _, id := range r.IDs() {
			out = append(out, r.adapters[id])
		}
		return out, nil
	}

	requested := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.adapters[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, id)
		}
		requested[id] = struct{}{}
	}

	out := make([]Adapter, 0, len(requested))
	for _, id := range r.order {
		if _, ok := requested[id]; ok {
			out = append(out, r.adapters[id])
		}
	}
	return out, nil
}
