package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/tendergate/tendergate/internal/errors"
	"github.com/tendergate/tendergate/internal/observability"
	"github.com/tendergate/tendergate/internal/ratelimit"
	"github.com/tendergate/tendergate/internal/server/handlers"
	servermw "github.com/tendergate/tendergate/internal/server/middleware"
)

// Options configures the gateway HTTP server.
type Options struct {
	Host string
	Port int

	// Upstream is the TenderDesk backend that governed traffic is proxied
	// to. Nil disables proxying (control endpoints only), which is useful
	// for tests.
	Upstream *url.URL

	// Engine makes per-client rate limit decisions. Nil disables per-client
	// limiting and the gateway proxies everything through untouched.
	Engine *ratelimit.Engine

	// GlobalRPS/GlobalBurst configure the whole-gateway throttle that sits
	// in front of the per-client limiter. Zero RPS disables it.
	GlobalRPS   float64
	GlobalBurst int

	// AdminToken secures the /admin endpoints. Empty disables them.
	AdminToken string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the gateway HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
}

// New creates a new gateway server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	// Our custom middleware in correct order (RequestID → Metrics → Recovery)
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics (measure everything)
	r.Use(servermw.Recovery)       // 3. Panic recovery

	// Standardized error responses using centralized HandleError
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router: r,
		opts:   opts,
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)

	// Register control routes, then the governed proxy catch-all
	s.registerRoutes()
	s.registerProxy()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  timeoutOr(s.opts.ReadTimeout, 30*time.Second),
		WriteTimeout: timeoutOr(s.opts.WriteTimeout, 30*time.Second),
		IdleTimeout:  timeoutOr(s.opts.IdleTimeout, 120*time.Second),
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}

func timeoutOr(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
