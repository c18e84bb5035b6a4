package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// keyPrefix отделяет ключи кэша от замков IdempotencyGuard и от чужих
// приложений в общем редисе.
const keyPrefix = "freightlink:"

// RedisCache — байтовый кэш с TTL. Планировщик держит в нём профили машин,
// полученные от fleet-api: промах оборачивается лишним HTTP-походом,
// а не ошибкой.
type RedisCache struct {
	c *redis.Client
}

func New(addr string) *RedisCache {
	return &RedisCache{
		c: redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 2 * time.Second,
		}),
	}
}

func key(k string) string { return keyPrefix + k }

func (r *RedisCache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, key(k)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, k string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key(k), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Del сбрасывает запись досрочно, не дожидаясь TTL.
func (r *RedisCache) Del(ctx context.Context, k string) error {
	if err := r.c.Del(ctx, key(k)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
