// Package dedupe collapses exact and near-duplicate documents while
// preserving provenance for the reranker's agreement signal.
package dedupe

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain/document"
	"github.com/docuchat/contextpipe/internal/metrics"
)

// Config holds deduplication tuning.
type Config struct {
	Similarity  float64 // Jaccard threshold for near-duplicates, (0, 1]
	ShingleSize int     // words per shingle
	CacheSize   int     // cross-request shingle cache entries, 0 disables
}

// Service is the deduplicator.
type Service struct {
	threshold   float64
	shingleSize int
	priority    func(backend.ID) int

	// shingle sets keyed by content fingerprint; identical content shows up
	// on every request for popular documents, so sets are cached across runs.
	cache *lru.Cache[uint64, map[uint64]struct{}]
}

// New creates a deduplicator.
func New(cfg Config, priority func(backend.ID) int) *Service {
	if cfg.Similarity <= 0 || cfg.Similarity > 1 {
		cfg.Similarity = 0.82
	}
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = 3
	}

	s := &Service{
		threshold:   cfg.Similarity,
		shingleSize: cfg.ShingleSize,
		priority:    priority,
	}
	if cfg.CacheSize > 0 {
		// lru.New only errors on non-positive size
		s.cache, _ = lru.New[uint64, map[uint64]struct{}](cfg.CacheSize)
	}
	return s
}

// kept is one retained group representative with its match state.
type kept struct {
	doc      *document.Document
	shingles map[uint64]struct{}
}

// Dedupe groups documents whose normalized content matches exactly or whose
// shingle similarity exceeds the threshold. Each group keeps the member with
// the highest normalized score as representative (earliest merge position on
// ties) and unions all members' provenance into it. Output order follows the
// merge order of each group's first occurrence.
func (s *Service) Dedupe(docs []*document.Document) []*document.Document {
	groups := make([]*kept, 0, len(docs))
	byFingerprint := make(map[uint64]*kept, len(docs))

	for _, doc := range docs {
		norm := normalize(doc.Content())
		fp := fingerprint(norm)
		doc.SetFingerprint(fp)

		if g, ok := byFingerprint[fp]; ok {
			s.absorb(g, doc)
			continue
		}

		shingles := s.shinglesFor(fp, norm)

		matched := false
		for _, g := range groups {
			if jaccard(shingles, g.shingles) >= s.threshold {
				s.absorb(g, doc)
				byFingerprint[fp] = g
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		g := &kept{doc: doc, shingles: shingles}
		groups = append(groups, g)
		byFingerprint[fp] = g
	}

	out := make([]*document.Document, 0, len(groups))
	for _, g := range groups {
		g.doc.SortSources(s.priority)
		out = append(out, g.doc)
	}
	return out
}

// absorb merges doc into the group, promoting it to representative when its
// normalized score beats the current one. Provenance is always unioned.
func (s *Service) absorb(g *kept, doc *document.Document) {
	metrics.DocumentsCollapsed.Inc()

	if doc.NormalizedScore() > g.doc.NormalizedScore() {
		for _, src := range g.doc.Sources() {
			doc.AddSource(src)
		}
		g.doc = doc
		return
	}
	for _, src := range doc.Sources() {
		g.doc.AddSource(src)
	}
}

// shinglesFor computes or recalls the shingle set for a fingerprint.
func (s *Service) shinglesFor(fp uint64, normalized string) map[uint64]struct{} {
	if s.cache != nil {
		if set, ok := s.cache.Get(fp); ok {
			return set
		}
	}
	set := shingleSet(normalized, s.shingleSize)
	if s.cache != nil {
		s.cache.Add(fp, set)
	}
	return set
}
