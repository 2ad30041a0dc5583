package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent. Callers fall through to the
// backing store; a miss is never a business error.
var ErrCacheMiss = errors.New("cache miss")

// CacheService is the injectable cache used by the template loader. The
// catalog is read-mostly and shared across concurrent sessions, so
// implementations must be safe for concurrent use.
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}
