// Package query holds the validated, immutable retrieval query.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain"
)

// Query parameter limits.
const (
	MaxTextLength      = 4096
	DefaultTopK        = 10
	MaxTopK            = 50
	DefaultTokenBudget = 2048
	MaxTokenBudget     = 32768
	DefaultDeadline    = 10 * time.Second
	MaxDeadline        = 60 * time.Second
)

// Query is a validated retrieval request. Immutable once built.
type Query struct {
	text        string
	filters     map[string]string
	backends    []backend.ID
	topK        int
	tokenBudget int
	deadline    time.Duration
}

// New validates and normalizes query parameters.
// An empty backends list means "all registered backends".
// Defaults: topK=10, tokenBudget=2048, deadline=10s.
func New(
	text string,
	filters map[string]string,
	backends []backend.ID,
	topK, tokenBudget int,
	deadline time.Duration,
) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, domain.ErrEmptyQuery
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxTextLength)
	}
	for _, id := range backends {
		if !id.IsValid() {
			return Query{}, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, id)
		}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if tokenBudget > MaxTokenBudget {
		tokenBudget = MaxTokenBudget
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if deadline > MaxDeadline {
		deadline = MaxDeadline
	}

	return Query{
		text:        text,
		filters:     filters,
		backends:    append([]backend.ID(nil), backends...),
		topK:        topK,
		tokenBudget: tokenBudget,
		deadline:    deadline,
	}, nil
}

// Text returns the query text.
func (q *Query) Text() string { return q.text }

// Filters returns the metadata pre-filters.
func (q *Query) Filters() map[string]string { return q.filters }

// Backends returns the enabled backend ids (empty = all registered).
func (q *Query) Backends() []backend.ID { return q.backends }

// TopK returns the per-backend result cap applied before merge.
func (q *Query) TopK() int { return q.topK }

// TokenBudget returns the maximum combined content length of the assembled context.
func (q *Query) TokenBudget() int { return q.tokenBudget }

// Deadline returns the global time budget for the dispatch fan-out.
func (q *Query) Deadline() time.Duration { return q.deadline }
