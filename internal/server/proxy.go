package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/tendergate/tendergate/internal/errors"
	"github.com/tendergate/tendergate/internal/observability"
	servermw "github.com/tendergate/tendergate/internal/server/middleware"
)

// registerProxy mounts the governed reverse proxy as the catch-all route.
// Requests pass the global throttle, then the per-client limiter, before
// reaching the upstream. Control endpoints registered earlier always win
// over the wildcard.
func (s *Server) registerProxy() {
	if s.opts.Upstream == nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("No upstream configured, proxying disabled")
		}
		return
	}

	proxy := newUpstreamProxy(s.opts.Upstream)

	s.router.Group(func(r chi.Router) {
		if s.opts.GlobalRPS > 0 {
			r.Use(servermw.Throttle(s.opts.GlobalRPS, s.opts.GlobalBurst))
		}
		if s.opts.Engine != nil {
			r.Use(servermw.RateLimit(s.opts.Engine))
		}
		r.Handle("/*", proxy)
	})

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Upstream proxy enabled",
			zap.String("upstream", s.opts.Upstream.String()))
	}
}

// newUpstreamProxy builds the reverse proxy for the TenderDesk backend with
// envelope-style error responses on upstream failure.
func newUpstreamProxy(upstream *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(upstream)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = upstream.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Error("Upstream request failed",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.Error(err))
		}
		envelope := apperrors.WrapExternalService(r.Context(), err, "Upstream service unavailable")
		HandleError(w, r, envelope)
	}

	return proxy
}
