package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

type Handler interface {
	Ping() error
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, syncerr.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, syncerr.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, syncerr.ErrAuth), errors.Is(err, syncerr.ErrNetwork), errors.Is(err, syncerr.ErrTypeMismatch):
		status = http.StatusBadGateway
	}
	code := syncerr.CodeOf(err)
	if code == "" {
		code = "internal-error"
	}
	writeJSON(w, log, status, errorResponse{Code: code, Message: err.Error()})
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return syncerr.Invalid("bad-request", "failed to decode request body", err)
	}
	return nil
}
