// Package web implements the open-web search backend over an external
// HTTP JSON search API.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/docuchat/contextpipe/internal/backend"
)

// Adapter queries an external web search API.
type Adapter struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// New creates a web search adapter. The per-call timeout comes from the
// dispatcher's context, so the client itself carries no timeout.
func New(endpoint, apiKey string) *Adapter {
	return &Adapter{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{},
	}
}

// ID implements backend.Adapter.
func (a *Adapter) ID() backend.ID { return backend.Web }

type searchRequest struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// Execute posts the query to the search API and converts the response.
func (a *Adapter) Execute(ctx context.Context, req backend.Request) ([]backend.Hit, error) {
	body, err := json.Marshal(searchRequest{Query: req.Text, Count: req.TopK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	hits := make([]backend.Hit, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		id := r.ID
		if id == "" {
			id = r.URL
		}
		score := r.Score
		if score == 0 {
			// APIs without scores return results ranked; synthesize a
			// descending score from the position.
			score = 1.0 / float64(i+1)
		}
		hits = append(hits, backend.Hit{
			ID:      id,
			Score:   score,
			Title:   r.Title,
			Content: r.Snippet,
			Meta: map[string]string{
				backend.MetaFileType: "web",
				backend.MetaURL:      r.URL,
			},
		})
	}
	return hits, nil
}
