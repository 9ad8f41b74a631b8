package server

import (
	"log/slog"
	"net/http"

	"github.com/quokkaops/answer-bridge/internal/adapter/handler"
	"github.com/quokkaops/answer-bridge/internal/adapter/handler/middleware"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	Events  *handler.EventsHandler
	Health  *handler.HealthHandler
	Ready   *handler.ReadyHandler
	Stats   *handler.StatsHandler
	Metrics *handler.MetricsHandler
	Reload  *handler.ReloadHandler
}

// NewRouter creates the HTTP router with all handlers.
func NewRouter(handlers *Handlers, logger *slog.Logger, metrics *observability.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/webhook/slack/events", handlers.Events)

	// Operational endpoints
	mux.Handle("/health", handlers.Health)
	mux.Handle("/", handlers.Health) // Root path returns health
	mux.Handle("/ready", handlers.Ready)
	mux.Handle("/stats", handlers.Stats)
	mux.Handle("/metrics", handlers.Metrics)

	if handlers.Reload != nil {
		mux.Handle("/-/reload", handlers.Reload)
	}

	// Apply middleware stack
	var h http.Handler = mux
	h = middleware.Observability(metrics)(h)
	h = middleware.RequestID(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
