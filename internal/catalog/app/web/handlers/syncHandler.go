package handlers

import (
	"context"
	"net/http"

	"pimsync_api/internal/catalog/business/services/importer"
	"pimsync_api/pkg/logger"
)

type SyncTrigger interface {
	Trigger(ctx context.Context, force bool) (*importer.SyncResult, error)
}

// SyncHandler runs the full product sync on demand.
type SyncHandler struct {
	trigger SyncTrigger
	log     logger.Logger
}

func NewSyncHandler(trigger SyncTrigger, log logger.Logger) *SyncHandler {
	return &SyncHandler{trigger: trigger, log: log}
}

func (h *SyncHandler) Ping() error { return nil }

type syncRequest struct {
	Force bool `json:"force"`
}

func (h *SyncHandler) SyncProductsHandler(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	result, err := h.trigger.Trigger(context.WithoutCancel(r.Context()), req.Force)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}
