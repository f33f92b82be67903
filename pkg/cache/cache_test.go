package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(size int) *MemoryCache {
	return NewMemoryCache(WithMemoryMaxSize(size), WithMemoryCleanup(0))
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(2)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Minute))
	_, err := mc.Get(ctx, "a") // a becomes most recent
	require.NoError(t, err)
	require.NoError(t, mc.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = mc.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	v, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(10)
	defer mc.Close()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	_, err := mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(10)
	defer mc.Close()
	for _, k := range []string{"scan:2024-01-02", "scan:2024-01-03", "similar:000001.SZ"} {
		require.NoError(t, mc.Set(ctx, k, []byte("x"), 0))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("scan:")))
	assert.Equal(t, 1, mc.Len())
	_, err := mc.Get(ctx, "similar:000001.SZ")
	assert.NoError(t, err)
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(10)
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock:scan", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock:scan"))
	ok, _ = mc.TryLock(ctx, "lock:scan", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCacheReadsThroughRemote(t *testing.T) {
	ctx := context.Background()
	remote := newTestMemory(10)
	lc := NewLayeredCache(remote, WithLayeredMemory(10, time.Minute))
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", []byte("remote"), time.Hour))
	v, err := lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(v))

	// L1 now holds the value even if the remote loses it.
	require.NoError(t, remote.Delete(ctx, "k"))
	v, err = lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(v))

	require.NoError(t, lc.Delete(ctx, "k"))
	_, err = lc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

type result struct {
	IC float64 `json:"ic"`
}

func TestGetOrLoadSharesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(10)
	defer mc.Close()
	ld := NewLoader(mc, nil)

	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return result{IC: 0.12}, nil
	}

	var wg sync.WaitGroup
	out := make([]result, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := GetOrLoad(ctx, ld, "analyze:alpha_001", time.Minute, load)
			assert.NoError(t, err)
			out[i] = r
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range out {
		assert.Equal(t, 0.12, r.IC)
	}

	// Served from cache afterwards.
	r, err := GetOrLoad(ctx, ld, "analyze:alpha_001", time.Minute, func(context.Context) (result, error) {
		return result{}, errors.New("should not load")
	})
	require.NoError(t, err)
	assert.Equal(t, 0.12, r.IC)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(10)
	defer mc.Close()
	ld := NewLoader(mc, nil)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, ld, "k", time.Minute, func(context.Context) (result, error) { return result{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mc.Len())
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "analyze:alpha_001:2024-01-02:60", GenerateKeyWithParams("analyze", "alpha_001", "2024-01-02", 60))
	assert.Len(t, HashKey("x"), 32)
}
