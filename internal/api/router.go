package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/abode-bridge/internal/platform"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/state", s.handleGetDevice)
				r.Put("/state", s.handleSetDeviceState)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Core    platform.Status `json:"core"`
}

// handleHealth reports "ok" while the core is authenticated and the push
// channel is up, "degraded" otherwise. The status code is 200 either way
// so the endpoint doubles as a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.core.Status()
	status := "ok"
	if !st.Authenticated() || !st.SocketConnected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Version: s.version,
		Core:    st,
	})
}
