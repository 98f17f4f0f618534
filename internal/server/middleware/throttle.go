package middleware

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/tendergate/tendergate/internal/metrics"
)

// Throttle applies a coarse whole-instance token bucket ahead of the
// per-key limiter. It is a DDoS backstop: the per-key store caps individual
// abusers, this caps aggregate inbound throughput. Disabled when rps <= 0.
func Throttle(rps float64, burst int) func(next http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set(HeaderRetryAfter, "1")

				envelope := errors.NewErrorEnvelope("TOO_MANY_REQUESTS", "service is over capacity, please retry").
					WithCorrelationID(GetRequestID(r.Context()))

				metrics.RecordError(envelope.Code, http.StatusTooManyRequests)
				writeErrorResponse(w, envelope, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
