package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// Store is the shared counter state for every key, striped across a fixed
// number of mutex-guarded shards so unrelated keys never contend. The
// window-reset, penalty check, and increment for one key happen under a
// single shard lock, so two concurrent requests cannot both observe the last
// remaining slot.
type Store struct {
	shards [shardCount]shard

	clock             func() time.Time
	penaltyBase       time.Duration
	penaltyMultiplier int
	penaltyCap        time.Duration
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source, used by tests for simulated time.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// WithPenaltySchedule overrides the escalation curve.
func WithPenaltySchedule(base time.Duration, multiplier int, limit time.Duration) StoreOption {
	return func(s *Store) {
		s.penaltyBase = base
		s.penaltyMultiplier = multiplier
		s.penaltyCap = limit
	}
}

// NewStore creates an empty counter store with the default penalty schedule.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		penaltyBase:       DefaultPenaltyBase,
		penaltyMultiplier: DefaultPenaltyMultiplier,
		penaltyCap:        DefaultPenaltyCap,
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*Entry)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key composes the counter key for an identity and endpoint category.
func Key(identity string, category string) string {
	return identity + ":" + category
}

// blockKey is the category-wildcard key used by administrative blocks.
// It is consulted on every check for the identity, regardless of category.
func blockKey(identity string) string {
	return identity + ":*"
}

// Check runs the fixed-window algorithm for one request:
//  1. reset the window if it has lapsed, keeping violation history and any
//     still-active penalty;
//  2. deny immediately under an active penalty without consuming window
//     budget, so the penalty's remaining duration stays stable;
//  3. otherwise count the request, escalating when the count crosses the
//     quota. The quota is inclusive: the MaxRequests-th request is allowed,
//     the next one is denied and penalized.
func (s *Store) Check(identity string, category string, cfg Config) Result {
	now := s.now()

	blockedUntil, blockViolations := s.blockState(identity, now)
	if blockedUntil != nil {
		return Result{
			Allowed:        false,
			Remaining:      0,
			ResetAt:        *blockedUntil,
			Penalized:      true,
			RetryAfter:     blockedUntil.Sub(now),
			ViolationCount: blockViolations,
			WindowStart:    now,
		}
	}

	key := Key(identity, category)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		e = &Entry{}
		sh.entries[key] = e
	}

	windowStart := e.WindowResetAt.Add(-cfg.Window)
	if e.WindowResetAt.IsZero() || !now.Before(e.WindowResetAt) {
		e.Count = 0
		e.WindowResetAt = now.Add(cfg.Window)
		windowStart = now
		if e.PenaltyUntil != nil && !now.Before(*e.PenaltyUntil) {
			e.PenaltyUntil = nil
		}
	}

	if e.PenaltyUntil != nil && now.Before(*e.PenaltyUntil) {
		return Result{
			Allowed:        false,
			Current:        e.Count,
			Remaining:      0,
			ResetAt:        e.WindowResetAt,
			Penalized:      true,
			RetryAfter:     e.PenaltyUntil.Sub(now),
			ViolationCount: e.ViolationCount,
			WindowStart:    windowStart,
		}
	}

	e.Count++
	if e.Count > cfg.MaxRequests {
		if e.ViolationCount < blockViolations {
			e.ViolationCount = blockViolations
		}
		e.ViolationCount++
		d := penaltyDuration(s.penaltyBase, s.penaltyMultiplier, s.penaltyCap, e.ViolationCount)
		until := now.Add(d)
		e.PenaltyUntil = &until

		return Result{
			Allowed:        false,
			Current:        e.Count,
			Remaining:      0,
			ResetAt:        e.WindowResetAt,
			RetryAfter:     d,
			Escalated:      true,
			ViolationCount: e.ViolationCount,
			WindowStart:    windowStart,
		}
	}

	return Result{
		Allowed:        true,
		Current:        e.Count,
		Remaining:      cfg.MaxRequests - e.Count,
		ResetAt:        e.WindowResetAt,
		ViolationCount: e.ViolationCount,
		WindowStart:    windowStart,
	}
}

// Block force-applies a penalty window to an identity across all endpoint
// categories and floors its violation count, so later organic violations
// continue the high end of the escalation curve rather than restarting it.
// Returns a snapshot of the block entry.
func (s *Store) Block(identity string, d time.Duration) Entry {
	now := s.now()
	key := blockKey(identity)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		e = &Entry{}
		sh.entries[key] = e
	}

	until := now.Add(d)
	e.PenaltyUntil = &until
	if e.ViolationCount < BlockedViolationFloor {
		e.ViolationCount = BlockedViolationFloor
	}

	return *e
}

// IsBlocked reports whether an administrative block is active for identity.
func (s *Store) IsBlocked(identity string) bool {
	until, _ := s.blockState(identity, s.now())
	return until != nil
}

// Status returns a snapshot of the entry for a key, if one exists.
func (s *Store) Status(key string) (Entry, bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Reset removes the entry for a key, clearing its counter, violation history
// and penalty. Operator intervention only; the request path never deletes.
func (s *Store) Reset(key string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[key]; !ok {
		return false
	}
	delete(sh.entries, key)
	return true
}

// ResetIdentity removes the administrative block entry for an identity.
func (s *Store) ResetIdentity(identity string) bool {
	return s.Reset(blockKey(identity))
}

// Sweep deletes every entry whose window has ended and whose penalty, if
// any, has expired. It is the only bulk deletion site in the subsystem and
// never inspects counts for anything but eligibility.
func (s *Store) Sweep() int {
	now := s.now()
	evicted := 0

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if now.Before(e.WindowResetAt) {
				continue
			}
			if e.PenaltyUntil != nil && now.Before(*e.PenaltyUntil) {
				continue
			}
			delete(sh.entries, key)
			evicted++
		}
		sh.mu.Unlock()
	}

	return evicted
}

// Len returns the number of tracked keys across all shards.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// blockState reads the administrative block entry for an identity. The
// returned time is non-nil only while a block is active. This takes the
// block key's shard lock on its own, never nested with another shard's.
func (s *Store) blockState(identity string, now time.Time) (*time.Time, int) {
	key := blockKey(identity)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return nil, 0
	}
	if e.PenaltyUntil != nil && now.Before(*e.PenaltyUntil) {
		until := *e.PenaltyUntil
		return &until, e.ViolationCount
	}
	return nil, e.ViolationCount
}

func (s *Store) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *Store) now() time.Time {
	if s != nil && s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}
