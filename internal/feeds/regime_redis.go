package feeds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dromero86/macrovista/internal/models"
)

const regimeKey = "macrovista:macro_regime"

// RedisRegimeProvider reads the macro regime snapshot the external
// classifier publishes to Redis. The snapshot is treated as opaque and
// already validated.
type RedisRegimeProvider struct {
	redis *redis.Client
}

// NewRedisRegimeProvider creates the provider.
func NewRedisRegimeProvider(redisClient *redis.Client) *RedisRegimeProvider {
	return &RedisRegimeProvider{redis: redisClient}
}

// CurrentRegime implements services.MacroRegimeProvider. A missing
// snapshot is an error: bias derivation must not run against a fabricated
// regime.
func (p *RedisRegimeProvider) CurrentRegime(ctx context.Context) (*models.MacroRegime, error) {
	data, err := p.redis.Get(ctx, regimeKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("no macro regime snapshot published")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read macro regime: %w", err)
	}

	var regime models.MacroRegime
	if err := json.Unmarshal([]byte(data), &regime); err != nil {
		return nil, fmt.Errorf("corrupt macro regime snapshot: %w", err)
	}
	return &regime, nil
}
