// Package dispatch fans a query out to every enabled retrieval backend
// concurrently and collects per-backend results and failures.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/query"
	"github.com/docuchat/contextpipe/internal/metrics"
)

// Service is the query dispatcher.
type Service struct {
	adapters AdapterSelector
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a dispatcher. timeout bounds each backend call individually;
// the query deadline bounds the whole fan-out.
func New(adapters AdapterSelector, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{adapters: adapters, timeout: timeout, logger: logger}
}

// Dispatch runs one call per enabled backend in parallel. Backend failures
// are recorded, not propagated: a slow or erroring backend never blocks the
// others. Returns domain.ErrNoRetrievalPossible when zero backends succeed.
func (s *Service) Dispatch(
	ctx context.Context, q *query.Query,
) (map[backend.ID][]backend.Hit, map[backend.ID]error, error) {
	selected, err := s.adapters.Select(q.Backends())
	if err != nil {
		return nil, nil, fmt.Errorf("select backends: %w", err)
	}
	if len(selected) == 0 {
		return nil, nil, domain.ErrNoRetrievalPossible
	}

	ctx, cancel := context.WithTimeout(ctx, q.Deadline())
	defer cancel()

	req := backend.Request{Text: q.Text(), Filters: q.Filters(), TopK: q.TopK()}

	var (
		mu       sync.Mutex
		hits     = make(map[backend.ID][]backend.Hit, len(selected))
		failures = make(map[backend.ID]error)
	)

	g := new(errgroup.Group)
	for _, a := range selected {
		a := a
		g.Go(func() error {
			id := a.ID()

			callCtx, cancelCall := context.WithTimeout(ctx, s.timeout)
			defer cancelCall()

			start := time.Now()
			res, execErr := a.Execute(callCtx, req)
			metrics.BackendCallDuration.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()

			switch {
			case execErr == nil:
				hits[id] = res
				metrics.BackendCallsTotal.WithLabelValues(string(id), "success").Inc()
				s.logger.Debug("backend call succeeded",
					zap.String("backend", string(id)),
					zap.Int("hits", len(res)),
					zap.Duration("took", time.Since(start)),
				)
			case errors.Is(execErr, context.DeadlineExceeded):
				failures[id] = domain.NewBackendFailure(string(id),
					fmt.Errorf("%w: %v", domain.ErrBackendTimeout, execErr))
				metrics.BackendCallsTotal.WithLabelValues(string(id), "timeout").Inc()
				s.logger.Warn("backend call timed out",
					zap.String("backend", string(id)),
					zap.Duration("took", time.Since(start)),
				)
			default:
				failures[id] = domain.NewBackendFailure(string(id),
					fmt.Errorf("%w: %v", domain.ErrBackendError, execErr))
				metrics.BackendCallsTotal.WithLabelValues(string(id), "error").Inc()
				s.logger.Warn("backend call failed",
					zap.String("backend", string(id)),
					zap.Error(execErr),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(hits) == 0 {
		return nil, failures, domain.ErrNoRetrievalPossible
	}
	return hits, failures, nil
}
