package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

// HealthHandler reports liveness plus the headline pipeline counters.
type HealthHandler struct {
	startTime time.Time
	stats     *respond.Stats
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats *respond.Stats) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		stats:     stats,
	}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.stats.Snapshot()

	response := map[string]any{
		"status":                  "ok",
		"timestamp":               time.Now().UTC().Format(time.RFC3339),
		"uptime":                  time.Since(h.startTime).String(),
		"eventsProcessed":         snap.EventsProcessed,
		"eventsFailed":            snap.EventsFailed,
		"duplicateEventsBlocked":  snap.DuplicateEventsBlocked,
		"averageProcessingTimeMs": snap.AverageProcessingTimeMs,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessChecker verifies one dependency is usable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// ReadyHandler reports readiness by pinging the registered dependencies.
type ReadyHandler struct {
	checkers []ReadinessChecker
}

// NewReadyHandler creates a new readiness handler.
func NewReadyHandler(checkers ...ReadinessChecker) *ReadyHandler {
	return &ReadyHandler{checkers: checkers}
}

// ServeHTTP handles GET /ready
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			checks[c.Name()] = err.Error()
			ready = false
			continue
		}
		checks[c.Name()] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": state,
		"checks": checks,
	})
}

// StatsHandler exposes the full pipeline counter snapshot.
type StatsHandler struct {
	stats *respond.Stats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *respond.Stats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// ServeHTTP handles GET /stats
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.stats.Snapshot())
}
