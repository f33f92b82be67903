package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    []byte
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache implements Service with an in-process LRU.
type MemoryCache struct {
	mutex      sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	ticker     *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
	now        func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	mc := &MemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	if cfg.CleanupInterval > 0 {
		mc.ticker = time.NewTicker(cfg.CleanupInterval)
		go mc.cleanupExpired()
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.setLocked(key, value, mc.now().Add(ttl))
	return nil
}

func (mc *MemoryCache) setLocked(key string, value []byte, expireAt time.Time) {
	if el, ok := mc.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.value = value
		item.expireAt = expireAt
		mc.order.MoveToFront(el)
		return
	}
	for mc.order.Len() >= mc.maxSize {
		mc.removeLocked(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(&memoryItem{key: key, value: value, expireAt: expireAt})
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	item := el.Value.(*memoryItem)
	if item.expired(mc.now()) {
		mc.removeLocked(el)
		return nil, ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	return item.value, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeLocked(el)
		}
	}
	return nil
}

// DeleteByPattern removes keys matching a glob pattern (path.Match syntax).
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	for key, el := range mc.items {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if ok {
			mc.removeLocked(el)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	if el, ok := mc.items[key]; ok && !el.Value.(*memoryItem).expired(now) {
		return false, nil
	}
	mc.setLocked(key, []byte("locked"), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len reports the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.ticker.C:
			mc.mutex.Lock()
			now := mc.now()
			for _, el := range mc.items {
				if el.Value.(*memoryItem).expired(now) {
					mc.removeLocked(el)
				}
			}
			mc.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		if mc.ticker != nil {
			mc.ticker.Stop()
		}
		close(mc.done)
	})
	return nil
}
