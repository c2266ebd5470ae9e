// Package assembly holds the pipeline output handed to the generation step.
package assembly

import "github.com/docuchat/contextpipe/internal/domain/document"

// FailureReason classifies a failed pipeline run. Callers route failed runs
// to a dedicated fallback path instead of treating the context as empty input.
type FailureReason string

// Failure reasons.
const (
	ReasonNone                FailureReason = ""
	ReasonEmptyQuery          FailureReason = "empty_query"
	ReasonNoRetrievalPossible FailureReason = "no_retrieval_possible"
	ReasonNoQualifyingResults FailureReason = "no_qualifying_results"
	ReasonBudgetTooSmall      FailureReason = "budget_too_small"
)

// Context is the assembled, length-bounded context block.
type Context struct {
	included    []*document.Document
	excludedIDs []string
	truncated   bool
	failure     FailureReason
}

// New creates a successful assembled context.
func New(included []*document.Document, excludedIDs []string, truncated bool) Context {
	return Context{
		included:    included,
		excludedIDs: excludedIDs,
		truncated:   truncated,
	}
}

// Failed creates a failed context carrying the reason.
// Excluded ids are kept for citation and debugging even on failure.
func Failed(reason FailureReason, excludedIDs []string) Context {
	return Context{failure: reason, excludedIDs: excludedIDs}
}

// Included returns the selected documents in rank order.
func (c *Context) Included() []*document.Document { return c.included }

// ExcludedIDs returns the ids of ranked documents left out of the context.
func (c *Context) ExcludedIDs() []string { return c.excludedIDs }

// Truncated reports whether the tail document was cut to fit the budget.
func (c *Context) Truncated() bool { return c.truncated }

// Failure returns the failure reason (ReasonNone on success).
func (c *Context) Failure() FailureReason { return c.failure }

// Failed reports whether the run failed.
func (c *Context) Failed() bool { return c.failure != ReasonNone }

// TotalLength returns the combined content length of the included documents.
func (c *Context) TotalLength() int {
	total := 0
	for _, d := range c.included {
		total += d.Length()
	}
	return total
}
