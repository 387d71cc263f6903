package automation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/autofin/autofin/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "autofin:pref:"

// RedisCache stores preference entries as JSON values with a native Redis
// expiry, for deployments where several orchestrator instances share one
// cache.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisCacheFromURL dials Redis from a redis:// connection URL.
func NewRedisCacheFromURL(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return NewRedisCache(redis.NewClient(opts)), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.AutomationPreference, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both treated as misses; the
		// engine falls through to the repository.
		return nil, false
	}

	var pref models.AutomationPreference
	if err := json.Unmarshal(payload, &pref); err != nil {
		return nil, false
	}

	return &pref, true
}

func (c *RedisCache) Set(ctx context.Context, key string, pref *models.AutomationPreference, ttl time.Duration) error {
	payload, err := json.Marshal(pref)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
