package cache

import (
	"context"
	"time"
)

// BytesCache — байтовый кеш. Get возвращает (nil, false, nil) при промахе.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
