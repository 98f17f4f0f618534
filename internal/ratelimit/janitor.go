package ratelimit

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/metrics"
)

// DefaultJanitorInterval is how often expired entries are swept.
const DefaultJanitorInterval = 5 * time.Minute

// Janitor periodically evicts expired, non-penalized entries from the store
// to bound memory. It runs out of band from request handling and takes the
// same per-shard locks as the request path, so it is safe to run
// concurrently with checks.
type Janitor struct {
	Store    *Store
	Interval time.Duration
	Logger   *logging.Logger
}

// Run sweeps on a fixed interval until the context is cancelled. Blocking;
// callers run it in its own goroutine.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := j.Store.Sweep()
			metrics.RecordJanitorSweep(evicted, j.Store.Len())
			if evicted > 0 && j.Logger != nil {
				j.Logger.Debug("janitor evicted expired rate limit entries",
					zap.Int("evicted", evicted),
					zap.Int("remaining", j.Store.Len()))
			}
		}
	}
}
