package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelink-health/carelink/pkg/logging"
)

// BehaviorStore tracks per-session request frequency. Observe records one
// request and returns how many landed inside the trailing window, including
// the one just recorded.
type BehaviorStore interface {
	Observe(ctx context.Context, sessionID string) (int, error)
	Reset(ctx context.Context, sessionID string) error
}

// MemoryBehaviorStore keeps a sliding window of request timestamps per
// session. Single-instance only; a multi-instance deployment should use the
// Redis store instead.
type MemoryBehaviorStore struct {
	window time.Duration
	clock  func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewMemoryBehaviorStore creates an in-memory behavior store.
func NewMemoryBehaviorStore(window time.Duration, clock func() time.Time) *MemoryBehaviorStore {
	if window <= 0 {
		window = time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryBehaviorStore{
		window:   window,
		clock:    clock,
		requests: make(map[string][]time.Time),
	}
}

// Observe records a request and returns the in-window count.
func (s *MemoryBehaviorStore) Observe(_ context.Context, sessionID string) (int, error) {
	now := s.clock()
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.requests[sessionID]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.requests[sessionID] = kept
	return len(kept), nil
}

// Reset clears the window for a session.
func (s *MemoryBehaviorStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, sessionID)
	return nil
}

// RedisBehaviorStore counts requests with INCR + EXPIRE so the window is
// shared across instances.
type RedisBehaviorStore struct {
	redis  *redis.Client
	window time.Duration
	logger *logging.Logger
}

// NewRedisBehaviorStore creates a Redis-backed behavior store.
func NewRedisBehaviorStore(client *redis.Client, window time.Duration, logger *logging.Logger) *RedisBehaviorStore {
	if client == nil {
		panic("guard: redis client cannot be nil")
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBehaviorStore{redis: client, window: window, logger: logger}
}

func behaviorKey(sessionID string) string {
	return fmt.Sprintf("guard:requests:%s", sessionID)
}

// Observe increments the per-session counter, setting expiry on first use.
func (s *RedisBehaviorStore) Observe(ctx context.Context, sessionID string) (int, error) {
	key := behaviorKey(sessionID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("guard: incr behavior counter: %w", err)
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.window)
	}
	return int(count), nil
}

// Reset clears the counter for a session.
func (s *RedisBehaviorStore) Reset(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, behaviorKey(sessionID)).Err()
}
