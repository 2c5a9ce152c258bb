package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/uc-remote-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, like the health check)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get(s.hub.cfg.Path, s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/auth/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermStateRead))

				r.Get("/state", s.handleGetState)
				r.Get("/system/status", s.handleSystemStatus)
				r.Get("/hub", s.handleGetHub)
				r.Get("/activities", s.handleListActivities)
				r.Get("/activities/{ref}", s.handleGetActivity)
				r.Get("/groups", s.handleListGroups)
				r.Get("/entities", s.handleListEntities)
				r.Get("/docks", s.handleListDocks)
				r.Get("/ir-devices", s.handleListIRDevices)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermCommandSend))

				r.Post("/activities/{ref}/start", s.handleStartActivity)
				r.Post("/activities/{ref}/stop", s.handleStopActivity)
				r.Post("/commands/button", s.handlePressButton)
				r.Post("/commands/ir", s.handleSendIR)
				r.Put("/docks/{ref}/charging", s.handleSetDockCharging)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermSystemPower))

				r.Post("/commands/system", s.handleSystemCommand)
				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !s.state.Ready() {
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
	})
}

// handleMe returns the caller's identity and permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "bearer token required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":     claims.Subject,
		"role":        claims.Role,
		"permissions": auth.PermissionsForRole(claims.Role),
		"expires_at":  claims.ExpiresAt.Time.UTC(),
	})
}
