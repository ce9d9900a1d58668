// Package api exposes a small status server for a running pool.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pool"
)

// Pool is the view of the orchestrator the handlers need.
type Pool interface {
	Tally() models.Tally
	Workers() []pool.WorkerSnapshot
	Pending(ctx context.Context) (int, error)
	Submitted() int
	Running() bool
	Cancelled() bool
	Cancel()
}

var _ Pool = (*pool.Orchestrator)(nil)

// Ledger reads task results persisted by earlier or concurrent runs.
type Ledger interface {
	List(ctx context.Context, runID string) ([]models.TaskResult, error)
	CountByOutcome(ctx context.Context, runID string) (map[models.Outcome]int, error)
}

type Handlers struct {
	pool   Pool
	ledger Ledger
	logger *slog.Logger
}

func NewHandlers(p Pool, logger *slog.Logger) *Handlers {
	return &Handlers{
		pool:   p,
		logger: logger.With("component", "api"),
	}
}

// WithLedger enables GET /api/v1/runs/{runID}.
func (h *Handlers) WithLedger(l Ledger) *Handlers {
	h.ledger = l
	return h
}

// StatsResponse is the payload of GET /api/v1/stats.
type StatsResponse struct {
	Running   bool                   `json:"running"`
	Cancelled bool                   `json:"cancelled"`
	Submitted int                    `json:"submitted"`
	Pending   int                    `json:"pending"`
	Completed int                    `json:"completed"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Outcomes  map[models.Outcome]int `json:"outcomes"`
	Workers   []pool.WorkerSnapshot  `json:"workers"`
}

// RunResponse is the payload of GET /api/v1/runs/{runID}.
type RunResponse struct {
	RunID    string                 `json:"run_id"`
	Total    int                    `json:"total"`
	Outcomes map[models.Outcome]int `json:"outcomes"`
	Results  []models.TaskResult    `json:"results"`
}

type ResultsResponse struct {
	Successes []models.TaskResult `json:"successes"`
	Failures  []models.TaskResult `json:"failures"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": h.pool.Running(),
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	pending, err := h.pool.Pending(r.Context())
	if err != nil {
		h.logger.Error("failed to get queue size", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get queue size")
		return
	}

	tally := h.pool.Tally()
	h.respondJSON(w, http.StatusOK, StatsResponse{
		Running:   h.pool.Running(),
		Cancelled: h.pool.Cancelled(),
		Submitted: h.pool.Submitted(),
		Pending:   pending,
		Completed: tally.Total,
		Succeeded: tally.Succeeded,
		Failed:    tally.Failed,
		Outcomes:  tally.Outcomes,
		Workers:   h.pool.Workers(),
	})
}

// GetResults lists finished tasks, optionally filtered by ?outcome=.
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	tally := h.pool.Tally()
	resp := ResultsResponse{
		Successes: tally.Successes,
		Failures:  tally.Failures,
	}

	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		switch models.Outcome(outcome) {
		case models.OutcomeSuccess, models.OutcomeNoReviews, models.OutcomeExtractorFailure, models.OutcomeSessionFailure:
		default:
			h.respondError(w, http.StatusBadRequest, "unknown outcome")
			return
		}
		resp.Successes = filterOutcome(resp.Successes, models.Outcome(outcome))
		resp.Failures = filterOutcome(resp.Failures, models.Outcome(outcome))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetRun reads one run's results from the ledger.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.respondError(w, http.StatusNotFound, "run ledger disabled")
		return
	}
	runID := chi.URLParam(r, "runID")

	outcomes, err := h.ledger.CountByOutcome(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to count run results", "run_id", runID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read run")
		return
	}
	results, err := h.ledger.List(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to list run results", "run_id", runID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read run")
		return
	}
	if len(results) == 0 {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, RunResponse{
		RunID:    runID,
		Total:    len(results),
		Outcomes: outcomes,
		Results:  results,
	})
}

// Cancel requests cooperative cancellation; in-flight tasks still finish.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	already := h.pool.Cancelled()
	h.pool.Cancel()
	if !already {
		h.logger.Info("cancellation requested via api", "remote", r.RemoteAddr)
	}
	h.respondJSON(w, http.StatusAccepted, map[string]any{
		"cancelled":         true,
		"already_cancelled": already,
	})
}

// NewRouter wires the handlers into a chi router.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/results", h.GetResults)
		r.Get("/runs/{runID}", h.GetRun)
		r.Post("/cancel", h.Cancel)
	})

	return r
}

// NewServer builds the status HTTP server for addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func filterOutcome(results []models.TaskResult, outcome models.Outcome) []models.TaskResult {
	out := make([]models.TaskResult, 0, len(results))
	for _, r := range results {
		if r.Outcome == outcome {
			out = append(out, r)
		}
	}
	return out
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
