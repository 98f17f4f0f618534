package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorEvictsExpiredEntries(t *testing.T) {
	now, clock := testClock(testStart)
	store := NewStore(WithClock(clock))
	cfg := Config{Window: time.Second, MaxRequests: 10, Label: CategoryDefault}

	store.Check("192.0.2.9", CategoryDefault, cfg)
	store.Check("192.0.2.10", CategoryDefault, cfg)
	require.Equal(t, 2, store.Len())

	*now = now.Add(2 * time.Second)

	janitor := &Janitor{Store: store, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		janitor.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after context cancellation")
	}
}

func TestJanitorStopsImmediatelyOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	janitor := &Janitor{Store: NewStore(), Interval: time.Hour}
	done := make(chan struct{})
	go func() {
		defer close(done)
		janitor.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not observe cancelled context")
	}
}
