package api

import (
	"errors"
	"net/http"
	"time"

	"storyforge/db"
	"storyforge/imagegen"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string   `json:"status"`
	Uptime        string   `json:"uptime"`
	UptimeSecs    float64  `json:"uptime_secs"`
	Providers     []string `json:"providers"`
	ActiveBatches int      `json:"active_batches"`
	History       bool     `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := s.now().Sub(s.started)
	resp := HealthResponse{
		Status:     "ok",
		Uptime:     uptime.Round(time.Second).String(),
		UptimeSecs: uptime.Seconds(),
		Providers:  configuredProviders(s.deps.Generator.Registry()),
		History:    s.deps.History != nil,
	}
	if s.deps.Gate != nil {
		resp.ActiveBatches = s.deps.Gate.ActiveBatches()
	}
	if len(resp.Providers) == 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func configuredProviders(registry *imagegen.Registry) []string {
	out := []string{}
	if registry == nil {
		return out
	}
	for _, sel := range registry.Configured() {
		out = append(out, string(sel))
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics are not enabled")
		return
	}
	recent := limitParam(r, "recent", 10, s.config.MaxLimit)
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot(recent))
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Batches []db.BatchRecord `json:"batches"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	limit := limitParam(r, "limit", s.config.DefaultLimit, s.config.MaxLimit)
	batches, err := s.deps.History.QueryRecentBatches(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to query history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if batches == nil {
		batches = []db.BatchRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Batches: batches, Count: len(batches), Limit: limit})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	id := chi.URLParam(r, "batchID")
	batch, err := s.deps.History.QueryBatch(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
	case err != nil:
		s.logger.Error("failed to query batch", zap.String("batch_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query batch")
	default:
		writeJSON(w, http.StatusOK, batch)
	}
}
