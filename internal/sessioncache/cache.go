package sessioncache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
)

// New returns the terminal's session cache: redis-backed when an address
// is configured and reachable, in-memory otherwise. Terminals in the field
// often run with no redis at all, so falling back is normal operation, not
// a degraded mode.
func New(addr string, log *zap.Logger) interfaces.SessionCache {
	if addr == "" {
		return NewMemory(log)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, using in-memory session cache",
			zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return NewMemory(log)
	}

	log.Info("session cache backed by redis", zap.String("addr", addr))
	return &redisCache{client: client}
}

type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", interfaces.ErrCacheMiss
	}
	return value, err
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero: no expiry
}

// Memory is the in-process fallback store.
type Memory struct {
	log *zap.Logger

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		log:     log.Named("sessioncache"),
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", interfaces.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", interfaces.ErrCacheMiss
	}
	return entry.value, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
