package handlers

import (
	"net/http"

	"pimsync_api/pkg/logger"
)

type HealthHandler struct {
	ping func() error
	log  logger.Logger
}

// NewHealthHandler reports healthy while ping succeeds. A nil ping is always healthy.
func NewHealthHandler(ping func() error, log logger.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, log: log}
}

func (h *HealthHandler) Ping() error {
	if h.ping == nil {
		return nil
	}
	return h.ping()
}

func (h *HealthHandler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Ping(); err != nil {
		h.log.Warn("health check failed", "error", err)
		writeJSON(w, h.log, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
}
