package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements two-level cache (L1: memory, L2: shared backend).
type LayeredCache struct {
	mem    *MemoryCache
	remote Service
	l1TTL  time.Duration
}

// NewLayeredCache creates a layered cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		l1TTL:  cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) memTTL(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < lc.l1TTL {
		return ttl
	}
	return lc.l1TTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// write-through: remote first so L1 never holds what L2 rejected
	if err := lc.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.mem.Set(ctx, key, value, lc.memTTL(ttl))
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if b, err := lc.mem.Get(ctx, key); err == nil {
		return b, nil
	}
	b, err := lc.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = lc.mem.Set(ctx, key, b, lc.l1TTL)
	return b, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.Join(lc.mem.DeleteByPattern(ctx, pattern), lc.remote.DeleteByPattern(ctx, pattern))
}

// TryLock and Unlock go to the shared layer only.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.remote.Close()
}
