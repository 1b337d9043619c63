package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/phonelink/internal/model"
)

// DefaultCacheTTL is how long a resolved phone stays cached.
const DefaultCacheTTL = 10 * time.Minute

const cacheKeyPrefix = "phonelink:resolve:"

// Cache stores resolutions keyed by canonical phone.
type Cache interface {
	Get(ctx context.Context, canonical string) (*model.Resolution, bool, error)
	Set(ctx context.Context, canonical string, res *model.Resolution) error
}

// redisClient is the subset of redis.Cmdable the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache. A non-positive ttl uses
// DefaultCacheTTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, canonical string) (*model.Resolution, bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+canonical).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "lookup: cache get")
	}
	var res model.Resolution
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false, eris.Wrap(err, "lookup: decode cached resolution")
	}
	return &res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, canonical string, res *model.Resolution) error {
	b, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "lookup: encode resolution")
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+canonical, b, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "lookup: cache set")
	}
	return nil
}

// Connect opens a Redis client for addr and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "lookup: redis ping")
	}
	return client, nil
}
