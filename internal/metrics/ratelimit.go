package metrics

import (
	"strconv"

	"github.com/tendergate/tendergate/internal/observability"
)

// Rate limiting metric names following Prometheus conventions.
const (
	RateLimitDecisionsTotalName = "ratelimit_decisions_total"
	RateLimitViolationsTotal    = "ratelimit_violations_total"
	RateLimitBlocksTotal        = "ratelimit_blocks_total"
	RateLimitEntries            = "ratelimit_entries"
	RateLimitSweepEvicted       = "ratelimit_sweep_evicted_total"
	RateLimitFailOpenTotal      = "ratelimit_fail_open_total"
)

// RecordDecision records one allow/deny decision per endpoint category.
func RecordDecision(category string, allowed bool, penalized bool) {
	if observability.TelemetrySystem == nil {
		return
	}

	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}

	_ = observability.TelemetrySystem.Counter(
		RateLimitDecisionsTotalName,
		1,
		map[string]string{
			"category":  category,
			"outcome":   outcome,
			"penalized": strconv.FormatBool(penalized),
		},
	)
}

// RecordViolation records a quota violation and its event severity.
func RecordViolation(category string, severity string) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		RateLimitViolationsTotal,
		1,
		map[string]string{
			"category": category,
			"severity": severity,
		},
	)
}

// RecordBlock records an administrative block, labelled by its origin
// (admin_api or cli).
func RecordBlock(source string) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		RateLimitBlocksTotal,
		1,
		map[string]string{"source": source},
	)
}

// RecordJanitorSweep records one sweep pass and the resulting store size.
func RecordJanitorSweep(evicted int, remaining int) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		RateLimitSweepEvicted,
		float64(evicted),
		nil,
	)
	_ = observability.TelemetrySystem.Gauge(
		RateLimitEntries,
		float64(remaining),
		nil,
	)
}

// RecordFailOpen records a decision-path fault that was converted into an
// allow. These should be rare; a non-zero rate means the limiter is broken,
// not that traffic is clean.
func RecordFailOpen(category string) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		RateLimitFailOpenTotal,
		1,
		map[string]string{"category": category},
	)
}
