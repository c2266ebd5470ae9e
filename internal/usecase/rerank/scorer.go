package rerank

import (
	"context"
	"strings"
	"unicode"

	"github.com/docuchat/contextpipe/internal/domain/document"
)

// LexicalScorer scores query-document relevance by query-term coverage.
// It is the default secondary scorer: cheap, deterministic, and offline.
type LexicalScorer struct{}

// NewLexicalScorer creates a lexical overlap scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Score returns, per document, the fraction of distinct query terms present
// in its title or content.
func (s *LexicalScorer) Score(
	_ context.Context, queryText string, docs []*document.Document,
) ([]float64, error) {
	queryTerms := termSet(queryText)

	scores := make([]float64, len(docs))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, d := range docs {
		docTerms := termSet(d.Title() + " " + d.Content())
		matches := 0
		for t := range queryTerms {
			if _, ok := docTerms[t]; ok {
				matches++
			}
		}
		scores[i] = float64(matches) / float64(len(queryTerms))
	}
	return scores, nil
}

// termSet extracts distinct lowercase terms of length >= 2.
func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			set[f] = struct{}{}
		}
	}
	return set
}
