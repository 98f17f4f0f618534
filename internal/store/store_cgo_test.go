//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendergate/tendergate/internal/config"
	"github.com/tendergate/tendergate/internal/ratelimit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openTestStore(t)
	require.Equal(t, "libsql", store.Driver())
}

func TestViolationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	occurred := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)
	violations := []ratelimit.Violation{
		{
			Identifier:     "203.0.113.7",
			Endpoint:       "/api/tenders",
			ViolationCount: 1,
			WindowStart:    occurred.Add(-time.Minute),
			WindowEnd:      occurred,
			Blocked:        true,
			OccurredAt:     occurred,
		},
		{
			Identifier:     "203.0.113.7",
			Endpoint:       "/api/tenders",
			ViolationCount: 2,
			WindowStart:    occurred.Add(-time.Minute),
			WindowEnd:      occurred,
			Blocked:        true,
			OccurredAt:     occurred.Add(time.Minute),
		},
		{
			Identifier:     "198.51.100.4",
			Endpoint:       "/api/auth/login",
			ViolationCount: 1,
			WindowStart:    occurred.Add(-15 * time.Minute),
			WindowEnd:      occurred,
			Blocked:        false,
			OccurredAt:     occurred.Add(-time.Hour),
		},
	}
	for _, v := range violations {
		require.NoError(t, store.Report(ctx, v))
	}

	// All records, most recent first.
	records, err := store.ListViolations(ctx, ViolationQuery{All: true})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2, records[0].Violation.ViolationCount)
	assert.Equal(t, "198.51.100.4", records[2].Violation.Identifier)
	assert.Equal(t, occurred.Add(time.Minute), records[0].Violation.OccurredAt)
	assert.True(t, records[0].Violation.Blocked)

	// Exact identifier match.
	records, err = store.ListViolations(ctx, ViolationQuery{Identifier: "198.51.100.4"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/api/auth/login", records[0].Violation.Endpoint)

	// Prefix match.
	count, err := store.CountViolations(ctx, ViolationQuery{Prefix: "203.0."})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReportRejectsEmptyIdentifier(t *testing.T) {
	store := openTestStore(t)
	err := store.Report(context.Background(), ratelimit.Violation{Endpoint: "/api/tenders"})
	require.Error(t, err)
}

func TestResetViolations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	occurred := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Report(ctx, ratelimit.Violation{
			Identifier:     "203.0.113.7",
			Endpoint:       "/api/tenders",
			ViolationCount: i,
			OccurredAt:     occurred,
		}))
	}
	require.NoError(t, store.Report(ctx, ratelimit.Violation{
		Identifier:     "198.51.100.4",
		Endpoint:       "/api/tenders",
		ViolationCount: 1,
		OccurredAt:     occurred,
	}))

	deleted, err := store.ResetViolations(ctx, ViolationQuery{Identifier: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	remaining, err := store.CountViolations(ctx, ViolationQuery{All: true})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Deleting with no matches reports zero.
	deleted, err = store.ResetViolations(ctx, ViolationQuery{Identifier: "203.0.113.7"})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSecurityEventPersistence(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.RaiseSecurityEvent(ctx, ratelimit.SecurityEvent{
		Type:        ratelimit.EventIPBlocked,
		Severity:    ratelimit.SeverityHigh,
		Description: "administrative block applied: scraper",
		Identity:    "203.0.113.7",
		Details:     map[string]string{"reason": "scraper"},
		OccurredAt:  time.Now().UTC(),
	}))

	var count int64
	require.NoError(t, store.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events WHERE identity = ?`, "203.0.113.7").Scan(&count))
	assert.Equal(t, int64(1), count)

	err := store.RaiseSecurityEvent(ctx, ratelimit.SecurityEvent{Identity: "203.0.113.7"})
	require.Error(t, err, "event type is required")
}
