package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/metrics"
)

// SessionCookie is the TenderDesk session cookie checked (alongside the
// Authorization header) to classify a caller as authenticated. The session's
// validity is the auth layer's problem; presence is enough for quota tiering.
const SessionCookie = "tenderdesk_session"

// Decision is the engine's verdict for one request, carrying everything the
// protocol adapter needs for response metadata.
type Decision struct {
	Allowed    bool
	Identity   string
	Category   string
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Penalized  bool
	Message    string
}

// Engine orchestrates identity resolution, policy resolution, the counter
// store, penalty escalation and violation reporting. Construct one instance
// explicitly and share it; there is no package-level singleton.
type Engine struct {
	Store    *Store
	Policy   *Policy
	Reporter Reporter
	Logger   *logging.Logger

	// TrustProxyHeaders selects ClientIdentity (X-Forwarded-For first) over
	// PeerIdentity. Disable for deployments without a trusted reverse proxy.
	TrustProxyHeaders bool

	// ReportTimeout bounds each asynchronous reporter call.
	ReportTimeout time.Duration

	// Clock overrides the time source for violation timestamps.
	Clock func() time.Time

	reports sync.WaitGroup
}

// Decide resolves identity and policy for the request, consults the store,
// and dispatches violation reports off the hot path. It never blocks on I/O.
func (e *Engine) Decide(r *http.Request) Decision {
	identity := e.identity(r)
	cfg := e.policy().Resolve(r.URL.Path, r.Method, e.authenticated(r))

	res := e.Store.Check(identity, cfg.Label, cfg)

	if res.Escalated {
		now := e.now()
		metrics.RecordViolation(cfg.Label, EventSeverity(res.ViolationCount))
		e.dispatchReport(Violation{
			Identifier:     identity,
			Endpoint:       r.URL.Path,
			ViolationCount: res.ViolationCount,
			WindowStart:    res.WindowStart,
			WindowEnd:      res.ResetAt,
			Blocked:        true,
			OccurredAt:     now,
		})
	}

	return Decision{
		Allowed:    res.Allowed,
		Identity:   identity,
		Category:   cfg.Label,
		Limit:      cfg.MaxRequests,
		Remaining:  res.Remaining,
		ResetAt:    res.ResetAt,
		RetryAfter: res.RetryAfter,
		Penalized:  res.Penalized,
		Message:    cfg.Message,
	}
}

// BlockIdentity force-applies a penalty window to an identity, independent
// of organic violations, and raises a high-severity security event. Intended
// for manual DDoS response via the admin surface.
func (e *Engine) BlockIdentity(identity string, d time.Duration, reason string) Entry {
	entry := e.Store.Block(identity, d)

	now := e.now()
	e.dispatchEvent(SecurityEvent{
		Type:        EventIPBlocked,
		Severity:    SeverityHigh,
		Description: "administrative block applied: " + reason,
		Identity:    identity,
		Details: map[string]string{
			"duration_ms": strconv.FormatInt(d.Milliseconds(), 10),
			"reason":      reason,
		},
		OccurredAt: now,
	})

	return entry
}

// Drain waits for in-flight violation reports, used during graceful
// shutdown so audit records are not lost on exit.
func (e *Engine) Drain() {
	e.reports.Wait()
}

// dispatchReport persists a violation and its security event without ever
// touching the caller-facing decision: the goroutine recovers panics and
// failures are only logged. Audit and decision are separate failure domains.
func (e *Engine) dispatchReport(v Violation) {
	if e.Reporter == nil {
		return
	}

	ev := SecurityEvent{
		Type:        EventRateLimitExceeded,
		Severity:    EventSeverity(v.ViolationCount),
		Description: "rate limit exceeded for " + v.Endpoint + " endpoints",
		Identity:    v.Identifier,
		Endpoint:    v.Endpoint,
		Details: map[string]string{
			"violation_count": strconv.Itoa(v.ViolationCount),
			"window_start":    v.WindowStart.UTC().Format(time.RFC3339),
			"window_end":      v.WindowEnd.UTC().Format(time.RFC3339),
		},
		OccurredAt: v.OccurredAt,
	}

	e.reports.Add(1)
	go func() {
		defer e.reports.Done()
		defer func() {
			if p := recover(); p != nil {
				e.logWarn("violation reporter panicked", zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.reportTimeout())
		defer cancel()

		if err := e.Reporter.Report(ctx, v); err != nil {
			e.logWarn("failed to persist violation record",
				zap.String("identifier", v.Identifier),
				zap.String("endpoint", v.Endpoint),
				zap.Error(err))
		}
		if err := e.Reporter.RaiseSecurityEvent(ctx, ev); err != nil {
			e.logWarn("failed to raise security event",
				zap.String("identity", ev.Identity),
				zap.String("type", ev.Type),
				zap.Error(err))
		}
	}()
}

func (e *Engine) dispatchEvent(ev SecurityEvent) {
	if e.Reporter == nil {
		return
	}

	e.reports.Add(1)
	go func() {
		defer e.reports.Done()
		defer func() {
			if p := recover(); p != nil {
				e.logWarn("violation reporter panicked", zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.reportTimeout())
		defer cancel()

		if err := e.Reporter.RaiseSecurityEvent(ctx, ev); err != nil {
			e.logWarn("failed to raise security event",
				zap.String("identity", ev.Identity),
				zap.String("type", ev.Type),
				zap.Error(err))
		}
	}()
}

func (e *Engine) identity(r *http.Request) string {
	if e.TrustProxyHeaders {
		return ClientIdentity(r)
	}
	return PeerIdentity(r)
}

// authenticated classifies the caller by credential presence only. Whether
// the credential is valid is decided upstream by the auth layer.
func (e *Engine) authenticated(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return true
	}
	return false
}

func (e *Engine) policy() *Policy {
	if e.Policy != nil {
		return e.Policy
	}
	return NewPolicy(nil)
}

func (e *Engine) reportTimeout() time.Duration {
	if e.ReportTimeout > 0 {
		return e.ReportTimeout
	}
	return 5 * time.Second
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func (e *Engine) logWarn(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Warn(msg, fields...)
	}
}
