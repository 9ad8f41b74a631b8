package handler

import (
	"errors"
	"net/http"

	"github.com/quokkaops/answer-bridge/internal/infrastructure/config"
	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

// ReloadHandler handles configuration reload requests.
type ReloadHandler struct {
	manager *config.Manager
	logger  respond.Logger
}

// NewReloadHandler creates a new reload handler.
func NewReloadHandler(manager *config.Manager, logger respond.Logger) *ReloadHandler {
	return &ReloadHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP handles POST /-/reload
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.manager.TryReload(); err != nil {
		if errors.Is(err, config.ErrRequiresRestart) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("configuration change requires restart\n"))
			return
		}

		h.logger.Error("manual reload failed", "error", err)
		http.Error(w, "configuration reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("configuration reloaded\n"))
}
