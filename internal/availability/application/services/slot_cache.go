package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
)

// CachedSlots is the serialized slot grid stored per query window.
type CachedSlots struct {
	Slots      []availability.Slot `json:"slots"`
	ComputedAt time.Time           `json:"computed_at"`
}

// SlotCache caches computed slot grids keyed by host, event type and
// query window. Degraded results are never cached.
type SlotCache interface {
	Get(ctx context.Context, key string) (*CachedSlots, error)
	Set(ctx context.Context, key string, value *CachedSlots, ttl time.Duration) error

	// InvalidateUser drops all cached grids for a host. Called when
	// bookings, event types or sources change.
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// SlotCacheKey builds the cache key for a slot query.
func SlotCacheKey(userID uuid.UUID, slug string, from, to time.Time) string {
	return fmt.Sprintf("slots:%s:%s:%d:%d", userID, slug, from.UTC().Unix(), to.UTC().Unix())
}

func userPattern(userID uuid.UUID) string {
	return fmt.Sprintf("slots:%s:*", userID)
}

// RedisSlotCache is the Redis-backed slot cache used in server mode.
type RedisSlotCache struct {
	client *redis.Client
}

// NewRedisSlotCache creates a Redis slot cache.
func NewRedisSlotCache(client *redis.Client) *RedisSlotCache {
	return &RedisSlotCache{client: client}
}

// Get returns the cached grid, or nil on a miss.
func (c *RedisSlotCache) Get(ctx context.Context, key string) (*CachedSlots, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedSlots
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// Set stores the grid with a TTL.
func (c *RedisSlotCache) Set(ctx context.Context, key string, value *CachedSlots, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// InvalidateUser scans and deletes every cached grid for the host.
func (c *RedisSlotCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	iter := c.client.Scan(ctx, 0, userPattern(userID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// MemorySlotCache is the in-process slot cache used in local mode.
type MemorySlotCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     *CachedSlots
	userID    string
	expiresAt time.Time
}

// NewMemorySlotCache creates an in-memory slot cache.
func NewMemorySlotCache() *MemorySlotCache {
	return &MemorySlotCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached grid, or nil on a miss or expiry.
func (c *MemorySlotCache) Get(_ context.Context, key string) (*CachedSlots, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.value, nil
}

// Set stores the grid with a TTL.
func (c *MemorySlotCache) Set(_ context.Context, key string, value *CachedSlots, ttl time.Duration) error {
	// Key layout: slots:{user}:{slug}:{from}:{to}
	var userID string
	if parts := strings.SplitN(key, ":", 3); len(parts) == 3 {
		userID = parts[1]
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{
		value:     value,
		userID:    userID,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// InvalidateUser drops all cached grids for the host.
func (c *MemorySlotCache) InvalidateUser(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.userID == userID.String() {
			delete(c.entries, key)
		}
	}
	return nil
}

// NoopSlotCache disables caching entirely.
type NoopSlotCache struct{}

// Get always misses.
func (NoopSlotCache) Get(context.Context, string) (*CachedSlots, error) { return nil, nil }

// Set discards the value.
func (NoopSlotCache) Set(context.Context, string, *CachedSlots, time.Duration) error { return nil }

// InvalidateUser is a no-op.
func (NoopSlotCache) InvalidateUser(context.Context, uuid.UUID) error { return nil }
