package server

import (
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/observability"
	"github.com/tendergate/tendergate/internal/server/handlers"
)

// registerRoutes registers the gateway's own control endpoints. These are
// served locally and never proxied, and they sit outside the governance
// middleware so operators can always reach them.
func (s *Server) registerRoutes() {
	// Standard health endpoints per Workhorse §9
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Admin endpoints (optional, requires TENDERGATE_ADMIN_TOKEN)
	s.registerAdminEndpoints()
}

// registerAdminEndpoints optionally registers the manual governance surface.
func (s *Server) registerAdminEndpoints() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no admin token set)")
		}
		return
	}
	if s.opts.Engine == nil {
		if logger != nil {
			logger.Warn("Admin endpoints disabled (rate limiting is off)")
		}
		return
	}

	admin := handlers.NewAdminHandler(s.opts.Engine, s.opts.AdminToken)
	s.router.Post("/admin/block", admin.BlockHandler)
	s.router.Post("/admin/reset", admin.ResetHandler)
	s.router.Get("/admin/status", admin.StatusHandler)

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("paths", "/admin/block /admin/reset /admin/status"),
			zap.String("auth", "bearer token"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}
