package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/query"
)

// fakeAdapter is a scriptable backend adapter.
type fakeAdapter struct {
	id    backend.ID
	hits  []backend.Hit
	err   error
	block bool // wait for the call context to expire
}

func (f *fakeAdapter) ID() backend.ID { return f.id }

func (f *fakeAdapter) Execute(ctx context.Context, _ backend.Request) ([]backend.Hit, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.hits, f.err
}

type fakeSelector struct {
	adapters []backend.Adapter
	err      error
}

func (f *fakeSelector) Select(_ []backend.ID) ([]backend.Adapter, error) {
	return f.adapters, f.err
}

func testQuery(t *testing.T) *query.Query {
	t.Helper()
	q, err := query.New("refund policy", nil, nil, 5, 1000, time.Second)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return &q
}

func newService(t *testing.T, adapters ...backend.Adapter) *Service {
	t.Helper()
	return New(&fakeSelector{adapters: adapters}, 50*time.Millisecond, zap.NewNop())
}

func TestDispatch_AllSucceed(t *testing.T) {
	svc := newService(t,
		&fakeAdapter{id: backend.Vector, hits: []backend.Hit{{ID: "1", Score: 0.9}}},
		&fakeAdapter{id: backend.Keyword, hits: []backend.Hit{{ID: "2", Score: 3.1}}},
	)

	hits, failures, err := svc.Dispatch(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits from %d backends, want 2", len(hits))
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %v, want none", failures)
	}
	if hits[backend.Vector][0].ID != "1" {
		t.Errorf("vector hit = %+v", hits[backend.Vector][0])
	}
}

func TestDispatch_SlowBackendsDoNotBlockTheFast(t *testing.T) {
	svc := newService(t,
		&fakeAdapter{id: backend.Vector, block: true},
		&fakeAdapter{id: backend.Keyword, block: true},
		&fakeAdapter{id: backend.Fulltext, hits: []backend.Hit{{ID: "3", Score: 1.0}}},
	)

	start := time.Now()
	hits, failures, err := svc.Dispatch(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if took := time.Since(start); took > 500*time.Millisecond {
		t.Fatalf("dispatch took %v, blocked on slow backends", took)
	}

	if len(hits) != 1 || len(hits[backend.Fulltext]) != 1 {
		t.Fatalf("hits = %v, want only fulltext", hits)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want vector and keyword timeouts", failures)
	}
	for _, id := range []backend.ID{backend.Vector, backend.Keyword} {
		if !errors.Is(failures[id], domain.ErrBackendTimeout) {
			t.Errorf("%s failure = %v, want ErrBackendTimeout", id, failures[id])
		}
		var bf *domain.BackendFailure
		if !errors.As(failures[id], &bf) || bf.Backend != string(id) {
			t.Errorf("%s failure does not carry the backend name: %v", id, failures[id])
		}
	}
}

func TestDispatch_ErrorIsRecordedNotPropagated(t *testing.T) {
	svc := newService(t,
		&fakeAdapter{id: backend.Vector, err: errors.New("index missing")},
		&fakeAdapter{id: backend.Keyword, hits: []backend.Hit{{ID: "2", Score: 1.0}}},
	)

	hits, failures, err := svc.Dispatch(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %v, want only keyword", hits)
	}
	if !errors.Is(failures[backend.Vector], domain.ErrBackendError) {
		t.Errorf("vector failure = %v, want ErrBackendError", failures[backend.Vector])
	}
}

func TestDispatch_AllFail(t *testing.T) {
	svc := newService(t,
		&fakeAdapter{id: backend.Vector, err: errors.New("down")},
		&fakeAdapter{id: backend.Keyword, block: true},
	)

	_, failures, err := svc.Dispatch(context.Background(), testQuery(t))
	if !errors.Is(err, domain.ErrNoRetrievalPossible) {
		t.Fatalf("err = %v, want ErrNoRetrievalPossible", err)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want both backends recorded", failures)
	}
}

func TestDispatch_EmptyHitsStillCountAsSuccess(t *testing.T) {
	svc := newService(t,
		&fakeAdapter{id: backend.Vector, hits: nil},
	)

	hits, _, err := svc.Dispatch(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := hits[backend.Vector]; !ok {
		t.Fatal("a successful call with zero hits must still be recorded")
	}
}

func TestDispatch_SelectorError(t *testing.T) {
	svc := New(&fakeSelector{err: domain.ErrUnknownBackend}, time.Second, zap.NewNop())
	_, _, err := svc.Dispatch(context.Background(), testQuery(t))
	if !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestDispatch_NoAdapters(t *testing.T) {
	svc := New(&fakeSelector{}, time.Second, zap.NewNop())
	_, _, err := svc.Dispatch(context.Background(), testQuery(t))
	if !errors.Is(err, domain.ErrNoRetrievalPossible) {
		t.Fatalf("err = %v, want ErrNoRetrievalPossible", err)
	}
}
