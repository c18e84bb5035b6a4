package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard защищает повторяемые операции (ретраи назначения плеча)
// от двойного выполнения: SETNX на ключ операции в пределах TTL.
type IdempotencyGuard struct {
	c *redis.Client
}

func NewIdempotencyGuard(addr string) *IdempotencyGuard {
	return &IdempotencyGuard{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Acquire возвращает true, если операция выполняется впервые в окне TTL.
func (g *IdempotencyGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.c.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return ok, nil
}

// Release снимает замок досрочно, чтобы неудавшуюся операцию можно было
// повторить до истечения TTL.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if err := g.c.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
