package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/history"
	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

func newTestMemoryCache(t *testing.T) types.CacheManager {
	t.Helper()

	cache, err := NewMemoryCache(
		t.Context(),
		logger.NewZapWrapper(zap.NewNop()),
		&types.CacheConfig{Enabled: true, Type: "memory", DefaultTTL: time.Minute},
		history.NewMemoryJournal(),
		nil,
	)
	require.NoError(t, err)

	return cache
}

func TestMemoryCacheSetGet(t *testing.T) {
	cache := newTestMemoryCache(t)

	key, err := cache.Set(types.SetParams{Prefix: "acme", Name: "greeting", Payload: "hello", TTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, DeriveKey("acme", "greeting"), key)

	payload, err := cache.Get(types.GetParams{Prefix: "acme", Name: "greeting"})
	require.NoError(t, err)
	require.Equal(t, "hello", payload)

	_, err = cache.Get(types.GetParams{Name: "greeting"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)
}

func TestMemoryCacheStaleGet(t *testing.T) {
	cache := newTestMemoryCache(t)

	_, err := cache.Set(types.SetParams{Name: "fleeting", Payload: "value", TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	payload, err := cache.Get(types.GetParams{Name: "fleeting"})
	require.NoError(t, err)
	require.Equal(t, "value", payload)
}

func TestMemoryCacheInvalidateExpired(t *testing.T) {
	cache := newTestMemoryCache(t)

	_, err := cache.Set(types.SetParams{Name: "expired", Payload: "old", TTL: 10 * time.Millisecond})
	require.NoError(t, err)
	_, err = cache.Set(types.SetParams{Name: "forever", Payload: "keep", TTL: types.NoExpiration})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)
	require.Len(t, report.Entries, 2)
	require.Equal(t, uint64(1), report.Counters.Sweeps)
	require.Len(t, report.History, 1)

	_, err = cache.Get(types.GetParams{Name: "expired"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)

	payload, err := cache.Get(types.GetParams{Name: "forever"})
	require.NoError(t, err)
	require.Equal(t, "keep", payload)
}

func TestMemoryCacheFlushAll(t *testing.T) {
	cache := newTestMemoryCache(t)

	for _, name := range []string{"a", "b"} {
		_, err := cache.Set(types.SetParams{Name: name, Payload: name, TTL: time.Hour})
		require.NoError(t, err)
	}

	report, err := cache.FlushAll()
	require.NoError(t, err)
	require.Equal(t, 2, report.Deleted)
	require.Equal(t, uint64(1), report.Invocations)
}

func TestMemoryCacheFlushByPattern(t *testing.T) {
	cache := newTestMemoryCache(t)

	_, err := cache.Set(types.SetParams{Prefix: "acme", Name: "one", Payload: "1", TTL: time.Hour})
	require.NoError(t, err)
	_, err = cache.Set(types.SetParams{Prefix: "other", Name: "two", Payload: "2", TTL: time.Hour})
	require.NoError(t, err)

	report, err := cache.FlushByPattern("^acme ", "")
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)

	_, err = cache.FlushByPattern("[", "")
	require.ErrorIs(t, err, types.ErrCachePatternInvalid)
}
