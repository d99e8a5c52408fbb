package handlers

import (
	"context"
	"net/http"
	"time"

	"pimsync_api/internal/catalog/business/services/importer"
	"pimsync_api/internal/pim/models"
	"pimsync_api/pkg/logger"
)

type Importer interface {
	ImportByIds(ctx context.Context, ids []string, force bool) (*importer.BatchResult, error)
	ImportRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error)
	SyncCategoryLinks(ctx context.Context, termIDs ...int64) ([]importer.CategoryLinkStatus, error)
}

type ImportHandler struct {
	engine Importer
	log    logger.Logger
}

func NewImportHandler(engine Importer, log logger.Logger) *ImportHandler {
	return &ImportHandler{engine: engine, log: log}
}

func (h *ImportHandler) Ping() error { return nil }

type importRequest struct {
	IDs   []string `json:"ids"`
	Force bool     `json:"force"`
}

// ImportProductsHandler imports the given ids, or everything when none are given.
// The batch keeps running if the caller goes away.
func (h *ImportHandler) ImportProductsHandler(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	startTime := time.Now()
	result, err := h.engine.ImportByIds(context.WithoutCancel(r.Context()), req.IDs, req.Force)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("import handler finished", "ids", len(req.IDs), "duration", time.Since(startTime))
	writeJSON(w, h.log, http.StatusOK, result)
}

type requirementSetRequest struct {
	ID string `json:"id"`
}

func (h *ImportHandler) ImportRequirementSetHandler(w http.ResponseWriter, r *http.Request) {
	var req requirementSetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	set, err := h.engine.ImportRequirementSet(r.Context(), req.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, set)
}

type categorySyncRequest struct {
	TermIDs []int64 `json:"term_ids"`
}

func (h *ImportHandler) SyncCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var req categorySyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	statuses, err := h.engine.SyncCategoryLinks(r.Context(), req.TermIDs...)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, statuses)
}
