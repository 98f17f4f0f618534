package ratelimit

import "time"

// Penalty escalation defaults: 5m, 10m, 20m, 40m, ... capped at 24h.
// A single burst costs a short delay; sustained abuse converges on a
// near-total block.
const (
	DefaultPenaltyBase       = 5 * time.Minute
	DefaultPenaltyMultiplier = 2
	DefaultPenaltyCap        = 24 * time.Hour

	// BlockedViolationFloor is the violation count forced by an
	// administrative block, so organic violations after the block continue
	// the high end of the escalation curve instead of restarting it.
	BlockedViolationFloor = 10
)

// penaltyDuration computes base * multiplier^(violations-1), capped.
// violations is the count after the current violation has been recorded.
func penaltyDuration(base time.Duration, multiplier int, limit time.Duration, violations int) time.Duration {
	if base <= 0 {
		base = DefaultPenaltyBase
	}
	if multiplier < 1 {
		multiplier = DefaultPenaltyMultiplier
	}
	if limit <= 0 {
		limit = DefaultPenaltyCap
	}
	if violations < 1 {
		violations = 1
	}

	d := base
	for i := 1; i < violations; i++ {
		d *= time.Duration(multiplier)
		if d >= limit || d <= 0 { // d <= 0 guards overflow
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}
