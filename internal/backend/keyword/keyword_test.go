package keyword

import (
	"context"
	"reflect"
	"testing"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/db"
)

type fakeSearcher struct {
	gotText *db.TextQuery
	result  *db.SearchResult
}

func (f *fakeSearcher) SearchKNN(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return nil, nil
}

func (f *fakeSearcher) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	f.gotText = q
	return f.result, nil
}

func TestSplitTerms(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"Refund Policy", []string{"refund", "policy"}},
		{"a I o", nil},
		{"error-code 42!", []string{"error", "code", "42"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitTerms(c.text)
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("splitTerms(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestExecute_BuildsORQuery(t *testing.T) {
	store := &fakeSearcher{result: &db.SearchResult{
		Total: 1,
		Entries: []db.SearchEntry{{
			Key: "doc:1", Score: 3.2,
			Fields: map[string]string{"title": "T", "content": "C", "container_id": "c9"},
		}},
	}}
	a := New(store, "docs:kw:idx", "keywords")

	hits, err := a.Execute(context.Background(), backend.Request{Text: "Refund Policy", TopK: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.gotText.Query != "refund|policy" {
		t.Errorf("query = %q, want OR-joined terms", store.gotText.Query)
	}
	if store.gotText.Field != "keywords" || store.gotText.TopK != 5 {
		t.Errorf("query = %+v", store.gotText)
	}

	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.ID != "doc:1" || h.Score != 3.2 || h.Title != "T" {
		t.Errorf("hit = %+v", h)
	}
	if h.Meta[backend.MetaContainerID] != "c9" {
		t.Errorf("meta = %v", h.Meta)
	}
}

func TestExecute_AllStopwords(t *testing.T) {
	store := &fakeSearcher{}
	a := New(store, "idx", "")

	hits, err := a.Execute(context.Background(), backend.Request{Text: "a I o", TopK: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != nil {
		t.Errorf("hits = %v, want none without searching", hits)
	}
	if store.gotText != nil {
		t.Error("an empty term set must not reach the store")
	}
}
