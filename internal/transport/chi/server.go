// Package chi is the HTTP transport: one retrieval endpoint plus health
// and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/domain"
	"github.com/docuchat/contextpipe/internal/domain/assembly"
	"github.com/docuchat/contextpipe/internal/domain/query"
	healthuc "github.com/docuchat/contextpipe/internal/usecase/health"
)

// Runner executes the retrieval pipeline.
type Runner interface {
	Run(ctx context.Context, q *query.Query) (assembly.Context, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Defaults fill request fields the caller left unset.
type Defaults struct {
	TopK        int
	TokenBudget int
	DeadlineMs  int
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the retrieval API.
type Server struct {
	pipeline      Runner
	health        HealthChecker
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Runner, health HealthChecker, defaults Defaults, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, string(assembly.ReasonEmptyQuery)),
		sentinelHandler(domain.ErrUnknownBackend, http.StatusBadRequest, "unknown_backend"),
		sentinelHandler(domain.ErrNoRetrievalPossible,
			http.StatusServiceUnavailable, string(assembly.ReasonNoRetrievalPossible)),
		sentinelHandler(domain.ErrNoQualifyingResults,
			http.StatusUnprocessableEntity, string(assembly.ReasonNoQualifyingResults)),
		sentinelHandler(domain.ErrBudgetTooSmall,
			http.StatusUnprocessableEntity, string(assembly.ReasonBudgetTooSmall)),
	}
	return s
}

// Routes mounts the API on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/retrieve", s.Retrieve)
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
}

type retrieveRequest struct {
	Query       string            `json:"query"`
	Filters     map[string]string `json:"filters,omitempty"`
	Backends    []string          `json:"backends,omitempty"`
	TopK        int               `json:"top_k,omitempty"`
	TokenBudget int               `json:"token_budget,omitempty"`
	DeadlineMs  int               `json:"deadline_ms,omitempty"`
}

type documentResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Content     string   `json:"content"`
	Sources     []string `json:"sources"`
	Score       float64  `json:"score"`
	Rank        int      `json:"rank"`
	ContainerID string   `json:"container_id,omitempty"`
	FileType    string   `json:"file_type,omitempty"`
	URL         string   `json:"url,omitempty"`
}

type retrieveResponse struct {
	Documents   []documentResponse `json:"documents"`
	ExcludedIDs []string           `json:"excluded_ids,omitempty"`
	Truncated   bool               `json:"truncated"`
	TotalLength int                `json:"total_length"`
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.TopK == 0 {
		req.TopK = s.defaults.TopK
	}
	if req.TokenBudget == 0 {
		req.TokenBudget = s.defaults.TokenBudget
	}
	if req.DeadlineMs == 0 {
		req.DeadlineMs = s.defaults.DeadlineMs
	}

	ids := make([]backend.ID, 0, len(req.Backends))
	for _, b := range req.Backends {
		ids = append(ids, backend.ID(b))
	}

	q, err := query.New(
		req.Query, req.Filters, ids,
		req.TopK, req.TokenBudget,
		time.Duration(req.DeadlineMs)*time.Millisecond,
	)
	if err != nil {
		s.handleError(w, err, "Invalid query")
		return
	}

	assembled, err := s.pipeline.Run(r.Context(), &q)
	if err != nil {
		s.handleError(w, err, "Retrieval failed")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(assembled))
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	writeJSON(w, status, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func toResponse(c assembly.Context) retrieveResponse {
	docs := make([]documentResponse, 0, len(c.Included()))
	for _, d := range c.Included() {
		sources := make([]string, 0, len(d.Sources()))
		for _, src := range d.Sources() {
			sources = append(sources, string(src))
		}
		meta := d.Metadata()
		docs = append(docs, documentResponse{
			ID:          d.ID(),
			Title:       d.Title(),
			Content:     d.Content(),
			Sources:     sources,
			Score:       d.FinalScore(),
			Rank:        d.Rank(),
			ContainerID: meta.ContainerID,
			FileType:    meta.FileType,
			URL:         meta.URL,
		})
	}
	return retrieveResponse{
		Documents:   docs,
		ExcludedIDs: c.ExcludedIDs(),
		Truncated:   c.Truncated(),
		TotalLength: c.TotalLength(),
	}
}

// handleError walks the handler chain; unmatched errors become 500s.
func (s *Server) handleError(w http.ResponseWriter, err error, msg string) {
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", msg)
}

// sentinelHandler maps a sentinel error to a status and failure code.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg+": "+err.Error())
		return true
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
