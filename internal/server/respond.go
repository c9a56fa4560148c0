package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode response", nil)
	}
}

// writeError maps application errors onto HTTP status codes. The response
// body carries the outer message only; wrapped infrastructure detail stays
// in the logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, ports.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrTradeAlreadyClosed), errors.Is(err, ports.ErrDuplicateEntry):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, ports.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, ports.ErrBrokerUnavailable), errors.Is(err, ports.ErrConnectionFailed):
		status = http.StatusBadGateway
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, ports.ErrContextCanceled):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		})
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}
