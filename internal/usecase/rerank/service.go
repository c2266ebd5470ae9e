// Package rerank computes the unified relevance score and fixes the total
// output order.
package rerank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain/document"
	"github.com/docuchat/contextpipe/internal/domain/query"
)

// Weights are the tunable components of the final score. They are
// configuration, not a fixed formula.
type Weights struct {
	Score     float64 // weight of the representative's normalized score
	Agreement float64 // weight of the multi-backend agreement boost
	Relevance float64 // weight of the secondary query-document relevance score
}

// DefaultWeights are applied when all weights are unset.
var DefaultWeights = Weights{Score: 0.6, Agreement: 0.25, Relevance: 0.15}

// Scorer recomputes query-document relevance for a candidate set.
// Implementations range from a cheap lexical overlap to a cross-encoder API.
type Scorer interface {
	Score(ctx context.Context, queryText string, docs []*document.Document) ([]float64, error)
}

// Service is the reranker.
type Service struct {
	weights  Weights
	scorer   Scorer // optional
	priority func(backend.ID) int
	logger   *zap.Logger
}

// New creates a reranker. scorer may be nil.
func New(weights Weights, scorer Scorer, priority func(backend.ID) int, logger *zap.Logger) *Service {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &Service{weights: weights, scorer: scorer, priority: priority, logger: logger}
}

// Rerank computes final scores and returns the documents in a deterministic
// total order: descending final score, ties broken by backend priority of
// the leading source, then by merge order (the sort is stable). Ranks are
// assigned 0..n-1. dispatched is the number of backends that took part, the
// denominator of the agreement boost.
func (s *Service) Rerank(
	ctx context.Context, docs []*document.Document, q *query.Query, dispatched int,
) []*document.Document {
	if len(docs) == 0 {
		return docs
	}

	relevance := s.relevanceScores(ctx, q.Text(), docs)

	for i, d := range docs {
		score := s.weights.Score*d.NormalizedScore() +
			s.weights.Agreement*agreementBoost(len(d.Sources()), dispatched)
		if relevance != nil {
			score += s.weights.Relevance * relevance[i]
		}
		d.Finalize(score, -1)
	}

	sorted := append([]*document.Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalScore() != sorted[j].FinalScore() {
			return sorted[i].FinalScore() > sorted[j].FinalScore()
		}
		return s.priority(sorted[i].Sources()[0]) < s.priority(sorted[j].Sources()[0])
	})

	for rank, d := range sorted {
		d.Finalize(d.FinalScore(), rank)
	}
	return sorted
}

// relevanceScores runs the secondary scorer. A scorer failure degrades to
// no secondary signal instead of failing the pipeline.
func (s *Service) relevanceScores(
	ctx context.Context, queryText string, docs []*document.Document,
) []float64 {
	if s.scorer == nil || s.weights.Relevance == 0 {
		return nil
	}
	scores, err := s.scorer.Score(ctx, queryText, docs)
	if err != nil {
		s.logger.Warn("relevance scorer failed, ranking on retrieval scores only", zap.Error(err))
		return nil
	}
	if len(scores) != len(docs) {
		s.logger.Warn("relevance scorer returned wrong count",
			zap.Int("want", len(docs)), zap.Int("got", len(scores)))
		return nil
	}
	return scores
}

// agreementBoost maps provenance size to [0,1]: 0 for a single backend,
// 1 when every dispatched backend agrees.
func agreementBoost(sources, dispatched int) float64 {
	if dispatched <= 1 || sources <= 1 {
		return 0
	}
	boost := float64(sources-1) / float64(dispatched-1)
	if boost > 1 {
		boost = 1
	}
	return boost
}
