package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docuchat/contextpipe/internal/backend"
)

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "golang concurrency" || req.Count != 3 {
			t.Errorf("request = %+v", req)
		}

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []searchResult{
			{ID: "r1", Title: "A", Snippet: "first", URL: "https://a.example", Score: 0.9},
			{Title: "B", Snippet: "second", URL: "https://b.example"},
			{Title: "C", Snippet: "third", URL: "https://c.example"},
		}})
	}))
	defer srv.Close()

	a := New(srv.URL, "sk-test")
	hits, err := a.Execute(context.Background(), backend.Request{Text: "golang concurrency", TopK: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}

	if hits[0].ID != "r1" || hits[0].Score != 0.9 {
		t.Errorf("hit 0 = %+v", hits[0])
	}
	// Missing id falls back to the URL; missing score is synthesized from rank.
	if hits[1].ID != "https://b.example" {
		t.Errorf("hit 1 id = %q, want the URL fallback", hits[1].ID)
	}
	if hits[1].Score != 0.5 || hits[2].Score != 1.0/3.0 {
		t.Errorf("synthesized scores = %v, %v", hits[1].Score, hits[2].Score)
	}
	if hits[0].Meta[backend.MetaURL] != "https://a.example" || hits[0].Meta[backend.MetaFileType] != "web" {
		t.Errorf("meta = %v", hits[0].Meta)
	}
}

func TestExecute_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Execute(context.Background(), backend.Request{Text: "q", TopK: 1})
	if err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestExecute_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL, "").Execute(ctx, backend.Request{Text: "q", TopK: 1})
	if err == nil {
		t.Fatal("expected error from a cancelled context")
	}
}
