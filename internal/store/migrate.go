package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS violations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identifier TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		violation_count INTEGER NOT NULL,
		window_start INTEGER NOT NULL,
		window_end INTEGER NOT NULL,
		blocked INTEGER NOT NULL DEFAULT 0,
		occurred_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_identifier ON violations(identifier);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_occurred ON violations(occurred_at);`,
	`CREATE TABLE IF NOT EXISTS security_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		identity TEXT NOT NULL,
		endpoint TEXT,
		details TEXT,
		occurred_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_security_events_identity ON security_events(identity);`,
	`CREATE INDEX IF NOT EXISTS idx_security_events_occurred ON security_events(occurred_at);`,
}

// Migrate ensures the required audit tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
