package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeNotReady    = "not_ready"
	ErrCodeUpstream    = "upstream_error"
	ErrCodeTimeout     = "timeout"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "service_unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCommandError maps a command failure onto an HTTP status.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, device.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, platform.ErrNotInitialised):
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "bridge is not initialised")
	case errors.Is(err, device.ErrCancelled):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dropped during shutdown")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "command timed out")
	case errors.Is(err, abode.ErrMissingSession),
		errors.Is(err, abode.ErrMissingAPIKey),
		errors.Is(err, abode.ErrMissingOAuth):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "Abode session unavailable")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	}
}
