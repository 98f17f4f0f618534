package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/metrics"
	"github.com/tendergate/tendergate/internal/observability"
	"github.com/tendergate/tendergate/internal/ratelimit"
)

// Rate limit response headers, set on every guarded response.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Decider yields a rate limit decision for a request. Satisfied by
// *ratelimit.Engine; a small interface keeps the adapter testable.
type Decider interface {
	Decide(r *http.Request) ratelimit.Decision
}

// RateLimit translates engine decisions into protocol effects: quota
// headers on every response, and a 429 with a retry hint on denial.
//
// The decision path fails open: rate limiting is defense in depth, so a
// fault inside the limiter must not become a denial of service against
// legitimate callers. The audit path has already been detached inside the
// engine and cannot influence the response either way.
func RateLimit(engine Decider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, ok := safeDecide(engine, r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
			w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

			metrics.RecordDecision(decision.Category, decision.Allowed, decision.Penalized)

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))

				message := decision.Message
				if message == "" {
					message = "too many requests, please try again later"
				}

				envelope := errors.NewErrorEnvelope("TOO_MANY_REQUESTS", message).
					WithCorrelationID(GetRequestID(r.Context()))
				envelope, _ = envelope.WithContext(map[string]interface{}{
					"retry_after_ms": int(decision.RetryAfter.Milliseconds()),
				})

				metrics.RecordError(envelope.Code, http.StatusTooManyRequests)
				writeErrorResponse(w, envelope, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// safeDecide runs the engine and converts any panic into "allow". The
// second return is false when the decision could not be computed.
func safeDecide(engine Decider, r *http.Request) (decision ratelimit.Decision, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			metrics.RecordFailOpen(decision.Category)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("rate limiter failed, allowing request",
					zap.Any("panic", p),
					zap.String("path", r.URL.Path))
			}
		}
	}()

	if engine == nil {
		return ratelimit.Decision{}, false
	}
	return engine.Decide(r), true
}
