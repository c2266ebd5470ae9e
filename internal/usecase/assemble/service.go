// Package assemble greedily selects ranked documents into a length-bounded
// context block.
package assemble

import (
	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/assembly"
	"github.com/docuchat/contextpipe/internal/domain/document"
)

// Config holds assembly tuning.
type Config struct {
	RelevanceFloor float64 // final score below which documents are excluded
	MinFragment    int     // smallest truncated tail worth keeping, in runes
}

// Service is the context assembler.
type Service struct {
	floor       float64
	minFragment int
}

// New creates an assembler.
func New(cfg Config) *Service {
	if cfg.MinFragment <= 0 {
		cfg.MinFragment = 64
	}
	return &Service{floor: cfg.RelevanceFloor, minFragment: cfg.MinFragment}
}

// Assemble walks the ranked list greedily. Documents below the relevance
// floor stop the walk even with budget left. A document that does not fit a
// nonzero remaining budget is truncated to it and closes the context, so a
// truncated fragment is always the last entry. Excluded ids are retained for
// citation and debugging. Input documents are never mutated.
func (s *Service) Assemble(docs []*document.Document, budget int) (assembly.Context, error) {
	if budget <= 0 {
		return assembly.Failed(assembly.ReasonBudgetTooSmall, collectIDs(docs)), domain.ErrBudgetTooSmall
	}

	var (
		included    []*document.Document
		excludedIDs []string
		truncated   bool
		remaining   = budget
		closed      = false
		floorStop   = false
	)

	for _, d := range docs {
		if closed {
			excludedIDs = append(excludedIDs, d.ID())
			continue
		}
		if d.FinalScore() < s.floor {
			closed = true
			floorStop = true
			excludedIDs = append(excludedIDs, d.ID())
			continue
		}

		length := d.Length()
		switch {
		case length <= remaining:
			included = append(included, d)
			remaining -= length
			if remaining == 0 {
				closed = true
			}
		case remaining >= s.minFragment:
			included = append(included, d.Truncated(remaining))
			truncated = true
			remaining = 0
			closed = true
		default:
			excludedIDs = append(excludedIDs, d.ID())
			closed = true
		}
	}

	if len(included) == 0 {
		if len(docs) == 0 || floorStop {
			return assembly.Failed(assembly.ReasonNoQualifyingResults, excludedIDs),
				domain.ErrNoQualifyingResults
		}
		return assembly.Failed(assembly.ReasonBudgetTooSmall, excludedIDs),
			domain.ErrBudgetTooSmall
	}

	return assembly.New(included, excludedIDs, truncated), nil
}

func collectIDs(docs []*document.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	return ids
}
