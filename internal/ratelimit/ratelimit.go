// Package ratelimit implements the abuse-governance core for tendergate:
// fixed-window request counting per (client identity, endpoint category) key,
// exponentially escalating penalties for repeat offenders, administrative IP
// blocking, and background eviction of expired state.
//
// The package is transport-agnostic. Protocol translation (headers, 429
// responses) lives in internal/server/middleware; durable audit of violations
// lives behind the Reporter interface.
package ratelimit

import (
	"time"
)

// Config describes one fixed-window limit applied to a key.
// Configs are resolved per request and never mutated after resolution.
type Config struct {
	// Window is the fixed counting interval.
	Window time.Duration

	// MaxRequests is the number of requests permitted per window.
	// The request that would make the count exceed this value is denied.
	MaxRequests int

	// Label names the endpoint category this config belongs to. It becomes
	// part of the counter key and of violation records.
	Label string

	// Message is an optional operator-facing denial message.
	Message string
}

// Entry is the mutable counter state for one key. Entries are owned
// exclusively by the Store; callers only ever see copies.
type Entry struct {
	// Count is the number of allowed requests observed in the current window.
	Count int

	// WindowResetAt is when the current window ends and Count resets.
	WindowResetAt time.Time

	// ViolationCount is the lifetime number of quota violations for this key.
	// It only grows; there is no decay or forgiveness window, so a repeat
	// offender resumes the escalation curve where it left off.
	ViolationCount int

	// PenaltyUntil, when set, denies all requests for the key until it passes.
	PenaltyUntil *time.Time
}

// Result is the outcome of a single store check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Current is the allowed-request count in the active window.
	Current int

	// Remaining is how many more requests the window permits.
	Remaining int

	// ResetAt is when the active window ends.
	ResetAt time.Time

	// Penalized is true when the denial came from an active penalty rather
	// than window overage.
	Penalized bool

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when allowed.
	RetryAfter time.Duration

	// Escalated is true when this check crossed the quota and applied a new
	// penalty. The caller is expected to report the violation.
	Escalated bool

	// ViolationCount is the key's violation total after this check.
	ViolationCount int

	// WindowStart is the beginning of the active window, kept for violation
	// records.
	WindowStart time.Time
}
