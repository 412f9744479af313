package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelink-health/carelink/pkg/logging"
)

// DefaultTTL is how long a sessionId -> userId binding survives without
// being refreshed.
const DefaultTTL = 10 * time.Minute

// IdentityMap resolves an opaque session id to the authenticated user id.
// A missing binding means "not authenticated"; it is a signal, not an error.
type IdentityMap interface {
	SetUserID(ctx context.Context, sessionID, userID string) error
	GetUserID(ctx context.Context, sessionID string) (string, bool)
}

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryIdentityMap keeps bindings in process memory with TTL eviction.
// The clock is injected so expiry is deterministically testable.
type MemoryIdentityMap struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryIdentityMap creates an in-memory identity map.
func NewMemoryIdentityMap(ttl time.Duration, clock func() time.Time) *MemoryIdentityMap {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryIdentityMap{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

// SetUserID binds sessionID to userID, refreshing the TTL.
func (m *MemoryIdentityMap) SetUserID(_ context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = memoryEntry{
		userID:    userID,
		expiresAt: m.clock().Add(m.ttl),
	}
	return nil
}

// GetUserID resolves sessionID; expired bindings are evicted on read.
func (m *MemoryIdentityMap) GetUserID(_ context.Context, sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[sessionID]
	if !ok {
		return "", false
	}
	if m.clock().After(entry.expiresAt) {
		delete(m.entries, sessionID)
		return "", false
	}
	return entry.userID, true
}

// RedisIdentityMap stores bindings in Redis so multiple instances share them.
type RedisIdentityMap struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisIdentityMap creates a Redis-backed identity map.
func NewRedisIdentityMap(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisIdentityMap {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisIdentityMap{redis: client, ttl: ttl, logger: logger}
}

func identityKey(sessionID string) string {
	return fmt.Sprintf("session:identity:%s", sessionID)
}

// SetUserID binds sessionID to userID with TTL expiry.
func (m *RedisIdentityMap) SetUserID(ctx context.Context, sessionID, userID string) error {
	if err := m.redis.Set(ctx, identityKey(sessionID), userID, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: set identity: %w", err)
	}
	return nil
}

// GetUserID resolves sessionID. Redis errors are treated as "not bound" so an
// infrastructure outage degrades to the unauthenticated path.
func (m *RedisIdentityMap) GetUserID(ctx context.Context, sessionID string) (string, bool) {
	val, err := m.redis.Get(ctx, identityKey(sessionID)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		m.logger.Error("identity lookup failed", "error", err, "session_id", sessionID)
		return "", false
	}
	return val, true
}
