package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// adminHeader carries the caller's Discord user ID. The dashboard sits
// behind a Discord-authenticating proxy; this layer only checks the
// allowlist.
const adminHeader = "X-Discord-User"

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}
		if id, ok := r.Context().Value(requestIDKey).(string); ok {
			fields["requestID"] = id
		}
		s.logger.Info(r.Context(), "Request handled", fields)
	})
}

// requireAdmin gates admin routes on the configured Discord ID allowlist.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(adminHeader)
		if caller == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + adminHeader + " header"})
			return
		}
		if !s.cfg.IsAdmin(caller) {
			s.logger.Warn(r.Context(), "Admin access denied", map[string]interface{}{
				"caller": caller,
				"path":   r.URL.Path,
			})
			s.writeError(w, r, fmt.Errorf("user %s is not an admin: %w", caller, ports.ErrPermissionDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}
