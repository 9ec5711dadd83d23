package api

import (
	"context"
	"net/http"

	"github.com/manualqa/manualqa/internal/app"
	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
)

// healthHandler serves liveness and readiness probes. Liveness is always up;
// readiness reflects whether the question-answering chain has initialized.
type healthHandler struct {
	cfg     *config.Config
	init    *app.Initializer
	baseCtx context.Context
	logger  log.Logger
}

// health reports process liveness for Docker/Kubernetes probes. It never
// touches the index or the provider.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": config.ServiceName,
		"model":   h.cfg.ModelName,
	}, h.logger)
}

// ready reports whether the chain can answer queries, triggering the
// one-time initialization if it has not run yet. Initialization uses the
// server lifetime context so a probe timeout cannot abort it halfway.
func (h *healthHandler) ready(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.init.App(h.baseCtx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		w.Header().Set("Retry-After", "5")
		WriteError(w, http.StatusServiceUnavailable, "not_ready", "service is not ready", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
}
