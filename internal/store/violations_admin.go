package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendergate/tendergate/internal/ratelimit"
)

// ViolationRecord is one persisted violation with its database identity.
type ViolationRecord struct {
	ID        int64 `json:"id"`
	Violation ratelimit.Violation
}

// ViolationQuery selects violations by identifier, prefix, or all.
type ViolationQuery struct {
	All        bool
	Identifier string
	Prefix     string
}

func (q ViolationQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Identifier) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --identifier, or --prefix")
}

func (q ViolationQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if identifier := strings.TrimSpace(q.Identifier); identifier != "" {
		return "WHERE identifier = ?", []any{identifier}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE identifier LIKE ?", []any{prefix + "%"}, nil
}

// ListViolations returns matching violation records, most recent first.
func (s *Store) ListViolations(ctx context.Context, q ViolationQuery) ([]ViolationRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, identifier, endpoint, violation_count, window_start, window_end, blocked, occurred_at
		FROM violations
		%s
		ORDER BY occurred_at DESC, id DESC
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []ViolationRecord{}
	for rows.Next() {
		var (
			id             int64
			identifier     string
			endpoint       string
			violationCount int
			windowStart    int64
			windowEnd      int64
			blocked        int
			occurredAt     int64
		)
		if err := rows.Scan(&id, &identifier, &endpoint, &violationCount, &windowStart, &windowEnd, &blocked, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan violations: %w", err)
		}

		records = append(records, ViolationRecord{
			ID: id,
			Violation: ratelimit.Violation{
				Identifier:     identifier,
				Endpoint:       endpoint,
				ViolationCount: violationCount,
				WindowStart:    time.Unix(windowStart, 0).UTC(),
				WindowEnd:      time.Unix(windowEnd, 0).UTC(),
				Blocked:        blocked != 0,
				OccurredAt:     time.Unix(occurredAt, 0).UTC(),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}

	return records, nil
}

// CountViolations counts matching violation records.
func (s *Store) CountViolations(ctx context.Context, q ViolationQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM violations
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}

// ResetViolations deletes matching violation records and returns the number
// removed.
func (s *Store) ResetViolations(ctx context.Context, q ViolationQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM violations
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset violations: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset violations: %w", err)
	}
	return affected, nil
}
