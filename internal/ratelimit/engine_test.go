package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendergate/tendergate/internal/metrics"
	"github.com/tendergate/tendergate/internal/observability"
)

func newEngineRequest(method, path, remoteAddr string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestEngineDecideAllowThenDeny(t *testing.T) {
	_, clock := testClock(testStart)
	reporter := NewMemoryReporter(16)
	engine := &Engine{
		Store: NewStore(WithClock(clock)),
		Policy: NewPolicy(map[string]Config{
			CategoryDefault: {Window: time.Minute, MaxRequests: 2},
		}),
		Reporter: reporter,
		Clock:    clock,
	}

	req := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.9:51234")

	d := engine.Decide(req)
	require.True(t, d.Allowed)
	assert.Equal(t, "192.0.2.9", d.Identity)
	assert.Equal(t, CategoryDefault, d.Category)
	assert.Equal(t, 2, d.Limit)
	assert.Equal(t, 1, d.Remaining)

	d = engine.Decide(req)
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = engine.Decide(req)
	require.False(t, d.Allowed)
	assert.Equal(t, DefaultPenaltyBase, d.RetryAfter)
	assert.NotEmpty(t, d.Message)

	engine.Drain()
	violations := reporter.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "192.0.2.9", violations[0].Identifier)
	assert.Equal(t, "/api/tenders", violations[0].Endpoint)
	assert.Equal(t, 1, violations[0].ViolationCount)
	assert.True(t, violations[0].Blocked)

	events := reporter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventRateLimitExceeded, events[0].Type)
	assert.Equal(t, SeverityMedium, events[0].Severity)
}

func TestEngineAuthenticatedQuotaScaling(t *testing.T) {
	_, clock := testClock(testStart)
	engine := &Engine{Store: NewStore(WithClock(clock)), Policy: NewPolicy(nil), Clock: clock}

	anon := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.9:51234")
	assert.Equal(t, 60, engine.Decide(anon).Limit)

	bearer := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.10:51234")
	bearer.Header.Set("Authorization", "Bearer t0ken")
	assert.Equal(t, 120, engine.Decide(bearer).Limit)

	session := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.11:51234")
	session.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	assert.Equal(t, 120, engine.Decide(session).Limit)

	emptySession := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.12:51234")
	emptySession.AddCookie(&http.Cookie{Name: SessionCookie, Value: ""})
	assert.Equal(t, 60, engine.Decide(emptySession).Limit)
}

func TestEngineProxyHeaderTrust(t *testing.T) {
	_, clock := testClock(testStart)

	trusting := &Engine{Store: NewStore(WithClock(clock)), Clock: clock, TrustProxyHeaders: true}
	wary := &Engine{Store: NewStore(WithClock(clock)), Clock: clock}

	req := newEngineRequest(http.MethodGet, "/api/tenders", "10.0.0.1:443")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	assert.Equal(t, "203.0.113.7", trusting.Decide(req).Identity)
	assert.Equal(t, "10.0.0.1", wary.Decide(req).Identity)
}

func TestEngineBlockIdentityRaisesHighSeverityEvent(t *testing.T) {
	_, clock := testClock(testStart)
	reporter := NewMemoryReporter(16)
	engine := &Engine{Store: NewStore(WithClock(clock)), Reporter: reporter, Clock: clock}

	entry := engine.BlockIdentity("203.0.113.7", time.Hour, "tender scraping")
	assert.GreaterOrEqual(t, entry.ViolationCount, BlockedViolationFloor)

	req := newEngineRequest(http.MethodGet, "/api/tenders", "203.0.113.7:51234")
	d := engine.Decide(req)
	require.False(t, d.Allowed)
	assert.True(t, d.Penalized)

	engine.Drain()
	events := reporter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventIPBlocked, events[0].Type)
	assert.Equal(t, SeverityHigh, events[0].Severity)
	assert.Contains(t, events[0].Description, "tender scraping")
	assert.Equal(t, "203.0.113.7", events[0].Identity)
}

func TestEngineNilReporterAndPolicy(t *testing.T) {
	_, clock := testClock(testStart)
	engine := &Engine{Store: NewStore(WithClock(clock)), Clock: clock}

	req := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.9:51234")
	for i := 0; i < 61; i++ {
		engine.Decide(req)
	}
	d := engine.Decide(req)
	assert.False(t, d.Allowed)
	engine.Drain()
}

func TestEventSeverity(t *testing.T) {
	assert.Equal(t, SeverityMedium, EventSeverity(1))
	assert.Equal(t, SeverityMedium, EventSeverity(3))
	assert.Equal(t, SeverityHigh, EventSeverity(4))
}

func TestMemoryReporterRetentionLimit(t *testing.T) {
	r := NewMemoryReporter(2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Report(ctx, Violation{ViolationCount: i}))
		require.NoError(t, r.RaiseSecurityEvent(ctx, SecurityEvent{Details: map[string]string{"n": ""}}))
	}

	violations := r.Violations()
	require.Len(t, violations, 2)
	assert.Equal(t, 2, violations[0].ViolationCount)
	assert.Equal(t, 3, violations[1].ViolationCount)
	assert.Len(t, r.Events(), 2)
}

func TestEngineEscalationEmitsViolationMetric(t *testing.T) {
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	_, clock := testClock(testStart)
	engine := &Engine{
		Store: NewStore(WithClock(clock)),
		Policy: NewPolicy(map[string]Config{
			CategoryDefault: {Window: time.Minute, MaxRequests: 1},
		}),
		Clock: clock,
	}

	req := newEngineRequest(http.MethodGet, "/api/tenders", "192.0.2.9:51234")
	require.True(t, engine.Decide(req).Allowed)
	require.False(t, engine.Decide(req).Allowed)

	recorded := collector.GetMetricsByName(metrics.RateLimitViolationsTotal)
	require.Len(t, recorded, 1)
	assert.Equal(t, CategoryDefault, recorded[0].Tags["category"])
	assert.Equal(t, SeverityMedium, recorded[0].Tags["severity"])
}
