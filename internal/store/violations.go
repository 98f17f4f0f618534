package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tendergate/tendergate/internal/ratelimit"
)

// Store implements ratelimit.Reporter: it is the durable-audit backend,
// selected by the audit.backend config. The ephemeral alternative is
// ratelimit.MemoryReporter.

// Report persists one violation record.
func (s *Store) Report(ctx context.Context, v ratelimit.Violation) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	identifier := strings.TrimSpace(v.Identifier)
	if identifier == "" {
		return errors.New("violation identifier is required")
	}

	blocked := 0
	if v.Blocked {
		blocked = 1
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO violations (identifier, endpoint, violation_count, window_start, window_end, blocked, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, identifier, v.Endpoint, v.ViolationCount,
		v.WindowStart.UTC().Unix(), v.WindowEnd.UTC().Unix(), blocked, v.OccurredAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store violation: %w", err)
	}

	return nil
}

// RaiseSecurityEvent persists one structured security event.
func (s *Store) RaiseSecurityEvent(ctx context.Context, ev ratelimit.SecurityEvent) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(ev.Type) == "" {
		return errors.New("security event type is required")
	}

	var details any
	if len(ev.Details) > 0 {
		payload, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		details = string(payload)
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO security_events (event_type, severity, description, identity, endpoint, details, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.Type, ev.Severity, ev.Description, ev.Identity, ev.Endpoint, details, ev.OccurredAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store security event: %w", err)
	}

	return nil
}
