// Package pipeline sequences dispatch, merge, dedupe, rerank and assembly
// as an explicit state machine.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/assembly"
	"github.com/docuchat/contextpipe/internal/domain/query"
	"github.com/docuchat/contextpipe/internal/metrics"
)

// State is a pipeline run state.
type State string

// Pipeline states. Completed and Failed are terminal.
const (
	StateIdle          State = "idle"
	StateDispatching   State = "dispatching"
	StateMerging       State = "merging"
	StateDeduplicating State = "deduplicating"
	StateReranking     State = "reranking"
	StateAssembling    State = "assembling"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// transitions is the allowed state graph. Failed is reachable from Idle
// (invalid query), Dispatching (all backends failed) and Assembling
// (nothing qualifies or fits).
var transitions = map[State][]State{
	StateIdle:          {StateDispatching, StateFailed},
	StateDispatching:   {StateMerging, StateFailed},
	StateMerging:       {StateDeduplicating},
	StateDeduplicating: {StateReranking},
	StateReranking:     {StateAssembling},
	StateAssembling:    {StateCompleted, StateFailed},
}

// Service is the pipeline orchestrator.
type Service struct {
	dispatcher Dispatcher
	merger     Merger
	dedupe     Deduplicator
	reranker   Reranker
	assembler  Assembler
	logger     *zap.Logger
}

// New creates a pipeline orchestrator.
func New(
	dispatcher Dispatcher,
	merger Merger,
	dedupe Deduplicator,
	reranker Reranker,
	assembler Assembler,
	logger *zap.Logger,
) *Service {
	return &Service{
		dispatcher: dispatcher,
		merger:     merger,
		dedupe:     dedupe,
		reranker:   reranker,
		assembler:  assembler,
		logger:     logger,
	}
}

// run tracks one pipeline invocation through the state machine.
type run struct {
	id     string
	state  State
	logger *zap.Logger
}

func (r *run) to(next State) {
	allowed := false
	for _, s := range transitions[r.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		r.logger.DPanic("illegal state transition",
			zap.String("from", string(r.state)), zap.String("to", string(next)))
	}
	r.logger.Debug("pipeline transition",
		zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
}

// Run executes the full pipeline for one query. On failure the returned
// context carries an explicit reason and the error wraps the matching
// sentinel; an empty context is never reported as success.
func (s *Service) Run(ctx context.Context, q *query.Query) (assembly.Context, error) {
	id := uuid.NewString()
	r := &run{
		id:     id,
		state:  StateIdle,
		logger: s.logger.With(zap.String("run_id", id)),
	}
	start := time.Now()

	if q == nil || strings.TrimSpace(q.Text()) == "" {
		r.to(StateFailed)
		metrics.PipelineRunsTotal.WithLabelValues(string(assembly.ReasonEmptyQuery)).Inc()
		return assembly.Failed(assembly.ReasonEmptyQuery, nil), domain.ErrEmptyQuery
	}

	r.to(StateDispatching)
	stageStart := time.Now()
	hits, failures, err := s.dispatcher.Dispatch(ctx, q)
	metrics.PipelineStageDuration.WithLabelValues("dispatch").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		r.to(StateFailed)
		r.logger.Warn("dispatch failed",
			zap.Int("backends_failed", len(failures)),
			zap.Error(err),
		)
		metrics.PipelineRunsTotal.WithLabelValues(string(assembly.ReasonNoRetrievalPossible)).Inc()
		return assembly.Failed(assembly.ReasonNoRetrievalPossible, nil), err
	}
	dispatched := len(hits) + len(failures)

	r.to(StateMerging)
	stageStart = time.Now()
	docs := s.merger.Merge(hits, q)
	metrics.PipelineStageDuration.WithLabelValues("merge").Observe(time.Since(stageStart).Seconds())

	r.to(StateDeduplicating)
	stageStart = time.Now()
	merged := len(docs)
	docs = s.dedupe.Dedupe(docs)
	metrics.PipelineStageDuration.WithLabelValues("dedupe").Observe(time.Since(stageStart).Seconds())

	r.to(StateReranking)
	stageStart = time.Now()
	docs = s.reranker.Rerank(ctx, docs, q, dispatched)
	metrics.PipelineStageDuration.WithLabelValues("rerank").Observe(time.Since(stageStart).Seconds())

	r.to(StateAssembling)
	stageStart = time.Now()
	assembled, err := s.assembler.Assemble(docs, q.TokenBudget())
	metrics.PipelineStageDuration.WithLabelValues("assemble").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		r.to(StateFailed)
		r.logger.Warn("assembly failed",
			zap.Int("candidates", len(docs)),
			zap.Error(err),
		)
		metrics.PipelineRunsTotal.WithLabelValues(string(assembled.Failure())).Inc()
		return assembled, err
	}

	r.to(StateCompleted)
	if assembled.Truncated() {
		metrics.ContextTruncations.Inc()
	}
	metrics.ContextDocuments.Observe(float64(len(assembled.Included())))
	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()

	r.logger.Info("pipeline completed",
		zap.Int("backends_succeeded", len(hits)),
		zap.Int("backends_failed", len(failures)),
		zap.Int("documents_merged", merged),
		zap.Int("documents_deduped", len(docs)),
		zap.Int("documents_included", len(assembled.Included())),
		zap.Int("context_length", assembled.TotalLength()),
		zap.Bool("truncated", assembled.Truncated()),
		zap.Duration("took", time.Since(start)),
	)
	return assembled, nil
}
