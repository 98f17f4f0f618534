package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Violation is the audit record produced when a key exceeds its quota or is
// administratively blocked.
type Violation struct {
	Identifier     string    `json:"identifier"`
	Endpoint       string    `json:"endpoint"`
	ViolationCount int       `json:"violation_count"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Blocked        bool      `json:"blocked"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Security event types and severities.
const (
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventIPBlocked         = "ip_blocked"

	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent is the structured event raised alongside a violation record.
type SecurityEvent struct {
	Type        string            `json:"type"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	Identity    string            `json:"identity"`
	Endpoint    string            `json:"endpoint"`
	Details     map[string]string `json:"details,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// EventSeverity maps a violation count to an event severity. Repeat
// offenders (more than three violations) are flagged high.
func EventSeverity(violationCount int) string {
	if violationCount > 3 {
		return SeverityHigh
	}
	return SeverityMedium
}

// Reporter persists violation records and security events for audit.
// Implementations must never be called on the request hot path; the engine
// dispatches reports asynchronously and swallows (but logs) failures, so a
// broken audit sink cannot change an allow/deny decision.
type Reporter interface {
	Report(ctx context.Context, v Violation) error
	RaiseSecurityEvent(ctx context.Context, ev SecurityEvent) error
}

// MemoryReporter keeps the most recent records in memory. It is the
// ephemeral audit backend, used when no durable store is configured and by
// tests.
type MemoryReporter struct {
	mu         sync.Mutex
	violations []Violation
	events     []SecurityEvent
	limit      int
}

// NewMemoryReporter creates a reporter retaining at most limit records of
// each kind (default 1024 when limit <= 0).
func NewMemoryReporter(limit int) *MemoryReporter {
	if limit <= 0 {
		limit = 1024
	}
	return &MemoryReporter{limit: limit}
}

// Report records a violation.
func (m *MemoryReporter) Report(ctx context.Context, v Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.violations = append(m.violations, v)
	if len(m.violations) > m.limit {
		m.violations = m.violations[len(m.violations)-m.limit:]
	}
	return nil
}

// RaiseSecurityEvent records a security event.
func (m *MemoryReporter) RaiseSecurityEvent(ctx context.Context, ev SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	if len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
	return nil
}

// Violations returns a copy of the retained violation records.
func (m *MemoryReporter) Violations() []Violation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Events returns a copy of the retained security events.
func (m *MemoryReporter) Events() []SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SecurityEvent, len(m.events))
	copy(out, m.events)
	return out
}
