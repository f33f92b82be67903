package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	applogger "AlphaLab/pkg/logger"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service stores raw bytes with a TTL. A zero TTL means the backend default.
type Service interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GetJSON reads key and decodes it into T.
func GetJSON[T any](ctx context.Context, c Service, key string) (T, error) {
	var out T
	b, err := c.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Service, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, b, ttl)
}

// Loader is a read-through front for a Service. Concurrent misses on the
// same key share one load. Cache failures are logged and never fail a load.
type Loader struct {
	c     Service
	l     *applogger.Logger
	group singleflight.Group
}

func NewLoader(c Service, l *applogger.Logger) *Loader {
	if l == nil {
		l = applogger.Nop()
	}
	return &Loader{c: c, l: l}
}

// Service returns the wrapped cache.
func (ld *Loader) Service() Service { return ld.c }

// GetOrLoad returns the cached value for key or calls load and caches its result.
func GetOrLoad[T any](ctx context.Context, ld *Loader, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	cached, err := GetJSON[T](ctx, ld.c, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		ld.l.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	v, err, _ := ld.group.Do(key, func() (interface{}, error) {
		res, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := SetJSON(ctx, ld.c, key, res, ttl); err != nil {
			ld.l.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
		}
		return res, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
