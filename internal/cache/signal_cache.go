package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dromero86/macrovista/internal/models"
)

const (
	statePrefix = "macrovista:"
	stateKey    = statePrefix + "correlation_state"
)

// SignalCache is the Redis-backed store for alert previous values and the
// latest correlation-state snapshot (warm-restart read path).
type SignalCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSignalCache creates a cache with the given TTL for state snapshots
// and trigger values.
func NewSignalCache(redisClient *redis.Client, ttl time.Duration) *SignalCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignalCache{redis: redisClient, ttl: ttl}
}

// GetFloat reads a cached float value. The second return is false on a
// cache miss.
func (c *SignalCache) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	data, err := c.redis.Get(ctx, statePrefix+key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	value, err := strconv.ParseFloat(data, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached float at %s: %w", key, err)
	}
	return value, true, nil
}

// SetFloat writes a cached float value.
func (c *SignalCache) SetFloat(ctx context.Context, key string, value float64) error {
	data := strconv.FormatFloat(value, 'f', -1, 64)
	if err := c.redis.Set(ctx, statePrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a key is present.
func (c *SignalCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.redis.Exists(ctx, statePrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// MarkSeen records a dedup key with the cache TTL.
func (c *SignalCache) MarkSeen(ctx context.Context, key string) error {
	if err := c.redis.Set(ctx, statePrefix+key, "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SaveState stores the latest correlation-state snapshot as JSON.
func (c *SignalCache) SaveState(ctx context.Context, state *models.CorrelationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize correlation state: %w", err)
	}
	if err := c.redis.Set(ctx, stateKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set correlation state: %w", err)
	}
	return nil
}

// LoadState reads the cached snapshot, returning nil on a miss.
func (c *SignalCache) LoadState(ctx context.Context) (*models.CorrelationState, error) {
	data, err := c.redis.Get(ctx, stateKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get correlation state: %w", err)
	}

	var state models.CorrelationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("corrupt cached correlation state: %w", err)
	}
	return &state, nil
}
