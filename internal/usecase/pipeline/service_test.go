package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/assembly"
	"github.com/docuchat/contextpipe/internal/domain/document"
	"github.com/docuchat/contextpipe/internal/domain/query"
)

type mockDispatcher struct {
	hits     map[backend.ID][]backend.Hit
	failures map[backend.ID]error
	err      error
	calls    int
}

func (m *mockDispatcher) Dispatch(context.Context, *query.Query) (
	map[backend.ID][]backend.Hit, map[backend.ID]error, error,
) {
	m.calls++
	return m.hits, m.failures, m.err
}

type mockMerger struct{ docs []*document.Document }

func (m *mockMerger) Merge(map[backend.ID][]backend.Hit, *query.Query) []*document.Document {
	return m.docs
}

type passDeduper struct{}

func (passDeduper) Dedupe(docs []*document.Document) []*document.Document { return docs }

type mockReranker struct{ gotDispatched int }

func (m *mockReranker) Rerank(
	_ context.Context, docs []*document.Document, _ *query.Query, dispatched int,
) []*document.Document {
	m.gotDispatched = dispatched
	for i, d := range docs {
		d.Finalize(1.0-float64(i)*0.1, i)
	}
	return docs
}

type mockAssembler struct {
	ctx       assembly.Context
	err       error
	gotBudget int
}

func (m *mockAssembler) Assemble(docs []*document.Document, budget int) (assembly.Context, error) {
	m.gotBudget = budget
	if m.err != nil {
		return m.ctx, m.err
	}
	return assembly.New(docs, nil, false), nil
}

func testQuery(t *testing.T) *query.Query {
	t.Helper()
	q, err := query.New("how do refunds work", nil, nil, 5, 800, time.Second)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return &q
}

func docFixture(id string) *document.Document {
	return document.New(id, backend.Vector, "t", "content", 0.9, document.Metadata{})
}

func TestRun_HappyPath(t *testing.T) {
	dispatcher := &mockDispatcher{
		hits: map[backend.ID][]backend.Hit{
			backend.Vector:  {{ID: "1", Score: 0.9}},
			backend.Keyword: {{ID: "2", Score: 2.0}},
		},
		failures: map[backend.ID]error{backend.Web: domain.ErrBackendTimeout},
	}
	reranker := &mockReranker{}
	assembler := &mockAssembler{}

	svc := New(dispatcher,
		&mockMerger{docs: []*document.Document{docFixture("a"), docFixture("b")}},
		passDeduper{}, reranker, assembler, zap.NewNop())

	ctx, err := svc.Run(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Failed() {
		t.Fatalf("context failed: %s", ctx.Failure())
	}
	if len(ctx.Included()) != 2 {
		t.Errorf("included %d docs, want 2", len(ctx.Included()))
	}
	// Failed backends still count toward the agreement denominator.
	if reranker.gotDispatched != 3 {
		t.Errorf("dispatched = %d, want 3 (2 ok + 1 failed)", reranker.gotDispatched)
	}
	if assembler.gotBudget != 800 {
		t.Errorf("budget = %d, want the query's token budget", assembler.gotBudget)
	}
}

func TestRun_NilQueryFailsWithoutDispatching(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc := New(dispatcher, &mockMerger{}, passDeduper{}, &mockReranker{}, &mockAssembler{}, zap.NewNop())

	ctx, err := svc.Run(context.Background(), nil)
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
	if ctx.Failure() != assembly.ReasonEmptyQuery {
		t.Errorf("failure = %q, want empty_query", ctx.Failure())
	}
	if dispatcher.calls != 0 {
		t.Error("dispatch must not run for an invalid query")
	}
}

func TestRun_DispatchFailure(t *testing.T) {
	dispatcher := &mockDispatcher{
		failures: map[backend.ID]error{
			backend.Vector:  domain.ErrBackendTimeout,
			backend.Keyword: domain.ErrBackendError,
		},
		err: domain.ErrNoRetrievalPossible,
	}
	svc := New(dispatcher, &mockMerger{}, passDeduper{}, &mockReranker{}, &mockAssembler{}, zap.NewNop())

	ctx, err := svc.Run(context.Background(), testQuery(t))
	if !errors.Is(err, domain.ErrNoRetrievalPossible) {
		t.Fatalf("err = %v, want ErrNoRetrievalPossible", err)
	}
	if ctx.Failure() != assembly.ReasonNoRetrievalPossible {
		t.Errorf("failure = %q, want no_retrieval_possible", ctx.Failure())
	}
	if len(ctx.Included()) != 0 {
		t.Error("a failed run must not carry documents")
	}
}

func TestRun_AssemblyFailurePropagates(t *testing.T) {
	assembler := &mockAssembler{
		ctx: assembly.Failed(assembly.ReasonNoQualifyingResults, []string{"a"}),
		err: domain.ErrNoQualifyingResults,
	}
	svc := New(
		&mockDispatcher{hits: map[backend.ID][]backend.Hit{backend.Vector: {{ID: "1"}}}},
		&mockMerger{docs: []*document.Document{docFixture("a")}},
		passDeduper{}, &mockReranker{}, assembler, zap.NewNop())

	ctx, err := svc.Run(context.Background(), testQuery(t))
	if !errors.Is(err, domain.ErrNoQualifyingResults) {
		t.Fatalf("err = %v, want ErrNoQualifyingResults", err)
	}
	if ctx.Failure() != assembly.ReasonNoQualifyingResults {
		t.Errorf("failure = %q", ctx.Failure())
	}
	if got := ctx.ExcludedIDs(); len(got) != 1 || got[0] != "a" {
		t.Errorf("excluded = %v, want [a]", got)
	}
}

func TestTransitions_LegalPaths(t *testing.T) {
	paths := [][]State{
		{StateIdle, StateDispatching, StateMerging, StateDeduplicating,
			StateReranking, StateAssembling, StateCompleted},
		{StateIdle, StateFailed},
		{StateIdle, StateDispatching, StateFailed},
		{StateIdle, StateDispatching, StateMerging, StateDeduplicating,
			StateReranking, StateAssembling, StateFailed},
	}
	for _, path := range paths {
		r := &run{state: path[0], logger: zap.NewNop()}
		for _, next := range path[1:] {
			r.to(next)
			if r.state != next {
				t.Fatalf("state = %s, want %s", r.state, next)
			}
		}
	}
}

func TestTransitions_IllegalEdgesAbsent(t *testing.T) {
	illegal := []struct{ from, to State }{
		{StateIdle, StateMerging},
		{StateMerging, StateFailed},
		{StateCompleted, StateDispatching},
		{StateFailed, StateIdle},
		{StateAssembling, StateDispatching},
	}
	for _, e := range illegal {
		for _, allowed := range transitions[e.from] {
			if allowed == e.to {
				t.Errorf("transition %s -> %s must not be allowed", e.from, e.to)
			}
		}
	}
}
