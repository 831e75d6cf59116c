package cache

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/history"
	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

func newTestFileCache(t *testing.T, defaultTTL time.Duration, compress bool) (types.CacheManager, string) {
	t.Helper()

	dir := t.TempDir()

	cache, err := NewFileCache(
		t.Context(),
		logger.NewZapWrapper(zap.NewNop()),
		&types.CacheConfig{
			Enabled:    true,
			Type:       "file",
			DefaultTTL: defaultTTL,
			Config:     &FileConfig{BasePath: dir, Compress: compress},
		},
		history.NewMemoryJournal(),
		nil,
	)
	require.NoError(t, err)

	return cache, dir
}

func TestDeriveKey(t *testing.T) {
	key := DeriveKey("", "user-42")
	require.True(t, strings.HasPrefix(key, "hash_"))
	require.Len(t, key, len("hash_")+64)

	require.Equal(t, key, DeriveKey("", "user-42"))
	require.NotEqual(t, key, DeriveKey("", "user-43"))

	prefixed := DeriveKey("acme", "user-42")
	require.Equal(t, "acme "+key, prefixed)

	other := DeriveKey("other", "user-42")
	require.Equal(t, "other "+key, other)
}

func TestFileCacheSetGet(t *testing.T) {
	cache, dir := newTestFileCache(t, time.Minute, false)

	location, err := cache.Set(types.SetParams{
		Prefix:  "acme",
		Name:    "greeting",
		Payload: map[string]string{"text": "hello"},
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, DeriveKey("acme", "greeting")), location)

	payload, err := cache.Get(types.GetParams{Prefix: "acme", Name: "greeting"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"text": "hello"}, payload)
}

func TestFileCacheSetEmptyName(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Payload: "x"})
	require.ErrorIs(t, err, types.ErrCacheKeyEmpty)

	_, err = cache.Get(types.GetParams{})
	require.ErrorIs(t, err, types.ErrCacheKeyEmpty)
}

func TestFileCacheDefaultTTLApplied(t *testing.T) {
	cache, dir := newTestFileCache(t, 2*time.Minute, false)

	location, err := cache.Set(types.SetParams{
		Name:    "defaulted",
		Payload: "value",
		TTL:     types.DefaultExpiration,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Contains(t, string(data), `"ttl":120000`)

	require.Equal(t, filepath.Join(dir, DeriveKey("", "defaulted")), location)
}

func TestFileCacheNoExpiration(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	location, err := cache.Set(types.SetParams{
		Name:    "pinned",
		Payload: "value",
		TTL:     types.NoExpiration,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Contains(t, string(data), `"ttl":0`)
	require.Contains(t, string(data), `"expiration":null`)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Zero(t, report.Deleted)

	payload, err := cache.Get(types.GetParams{Name: "pinned"})
	require.NoError(t, err)
	require.Equal(t, "value", payload)
}

func TestFileCacheGetMissing(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Get(types.GetParams{Name: "absent"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)
}

func TestFileCacheGetMalformed(t *testing.T) {
	cache, dir := newTestFileCache(t, time.Minute, false)

	path := filepath.Join(dir, DeriveKey("", "broken"))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := cache.Get(types.GetParams{Name: "broken"})
	require.ErrorIs(t, err, types.ErrCacheEntryMalformed)
}

func TestFileCacheOverwrite(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Name: "key", Payload: "first", TTL: time.Minute})
	require.NoError(t, err)

	_, err = cache.Set(types.SetParams{Name: "key", Payload: "second", TTL: time.Minute})
	require.NoError(t, err)

	payload, err := cache.Get(types.GetParams{Name: "key"})
	require.NoError(t, err)
	require.Equal(t, "second", payload)
}

func TestFileCacheStaleGet(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Name: "fleeting", Payload: "value", TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	payload, err := cache.Get(types.GetParams{Name: "fleeting"})
	require.NoError(t, err)
	require.Equal(t, "value", payload)
}

func TestFileCacheInvalidateExpired(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Name: "expired", Payload: "old", TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	_, err = cache.Set(types.SetParams{Name: "live", Payload: "new", TTL: time.Hour})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)

	require.Equal(t, 1, report.Deleted)
	require.Len(t, report.Entries, 2)
	require.Equal(t, uint64(1), report.Counters.Sweeps)
	require.Positive(t, report.TotalBytes)
	require.Len(t, report.History, 1)
	require.Equal(t, report.TotalBytes, report.History[0].TotalBytes)

	_, err = cache.Get(types.GetParams{Name: "expired"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)

	payload, err := cache.Get(types.GetParams{Name: "live"})
	require.NoError(t, err)
	require.Equal(t, "new", payload)

	report, err = cache.InvalidateExpired()
	require.NoError(t, err)
	require.Equal(t, uint64(2), report.Counters.Sweeps)
	require.Zero(t, report.Deleted)
	require.Len(t, report.History, 2)
}

func TestFileCacheSweepReportsRemainingLifetime(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Name: "timed", Payload: "v", TTL: time.Hour})
	require.NoError(t, err)

	_, err = cache.Set(types.SetParams{Name: "forever", Payload: "v", TTL: types.NoExpiration})
	require.NoError(t, err)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)

	for _, entry := range report.Entries {
		require.True(t, entry.Valid)
		if entry.TTL == 0 {
			require.Nil(t, entry.ExpiresIn)
		} else {
			require.NotNil(t, entry.ExpiresIn)
			require.Positive(t, *entry.ExpiresIn)
		}
	}
}

func TestFileCacheSweepEmptyDirectory(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Zero(t, report.Deleted)
	require.Zero(t, report.TotalBytes)
	require.Empty(t, report.Entries)
	require.Equal(t, uint64(1), report.Counters.Sweeps)
}

func TestFileCacheFlushAll(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	for _, name := range []string{"a", "b", "c"} {
		_, err := cache.Set(types.SetParams{Name: name, Payload: name, TTL: time.Hour})
		require.NoError(t, err)
	}

	report, err := cache.FlushAll()
	require.NoError(t, err)
	require.Equal(t, 3, report.Deleted)
	require.Equal(t, uint64(1), report.Invocations)
	require.Empty(t, report.Error)

	_, err = cache.Get(types.GetParams{Name: "a"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)

	report, err = cache.FlushAll()
	require.NoError(t, err)
	require.Zero(t, report.Deleted)
	require.Equal(t, uint64(2), report.Invocations)
}

func TestFileCacheFlushByPattern(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Prefix: "acme", Name: "one", Payload: "1", TTL: time.Hour})
	require.NoError(t, err)
	_, err = cache.Set(types.SetParams{Prefix: "acme", Name: "two", Payload: "2", TTL: time.Hour})
	require.NoError(t, err)
	_, err = cache.Set(types.SetParams{Prefix: "other", Name: "three", Payload: "3", TTL: time.Hour})
	require.NoError(t, err)

	report, err := cache.FlushByPattern("^acme ", "")
	require.NoError(t, err)
	require.Equal(t, 2, report.Deleted)
	require.Equal(t, uint64(1), report.Invocations)
	require.Empty(t, report.Error)

	_, err = cache.Get(types.GetParams{Prefix: "acme", Name: "one"})
	require.ErrorIs(t, err, types.ErrCacheEntryNotFound)

	payload, err := cache.Get(types.GetParams{Prefix: "other", Name: "three"})
	require.NoError(t, err)
	require.Equal(t, "3", payload)
}

func TestFileCacheFlushByPatternBothMustMatch(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.Set(types.SetParams{Prefix: "acme", Name: "one", Payload: "1", TTL: time.Hour})
	require.NoError(t, err)

	target := DeriveKey("acme", "one")

	report, err := cache.FlushByPattern("^acme ", "no-such-digest")
	require.NoError(t, err)
	require.Zero(t, report.Deleted)

	report, err = cache.FlushByPattern("^acme ", regexp.QuoteMeta(target))
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)
}

func TestFileCacheFlushByPatternInvalidRegex(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	_, err := cache.FlushByPattern("[", "")
	require.ErrorIs(t, err, types.ErrCachePatternInvalid)

	_, err = cache.FlushByPattern("", "[")
	require.ErrorIs(t, err, types.ErrCachePatternInvalid)
}

func TestFileCacheFlushCountersIndependent(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	full, err := cache.FlushAll()
	require.NoError(t, err)
	require.Equal(t, uint64(1), full.Invocations)

	pattern, err := cache.FlushByPattern(".*", "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), pattern.Invocations)

	sweep, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Equal(t, uint64(1), sweep.Counters.Sweeps)
	require.Equal(t, uint64(1), sweep.Counters.FullFlushes)
	require.Equal(t, uint64(1), sweep.Counters.PatternFlushes)
}

func TestFileCacheCompressedRoundTrip(t *testing.T) {
	cache, dir := newTestFileCache(t, time.Minute, true)

	location, err := cache.Set(types.SetParams{Name: "packed", Payload: "value", TTL: time.Hour})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(location, ".br"))

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	require.NotContains(t, string(data), `"payload"`)

	payload, err := cache.Get(types.GetParams{Name: "packed"})
	require.NoError(t, err)
	require.Equal(t, "value", payload)

	report, err := cache.InvalidateExpired()
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	require.Equal(t, filepath.Join(dir, DeriveKey("", "packed")+".br"), location)
}

func TestFileCacheLifecycle(t *testing.T) {
	cache, _ := newTestFileCache(t, time.Minute, false)

	require.False(t, cache.IsRunning())
	require.NoError(t, cache.Start())
	require.True(t, cache.IsRunning())
	require.ErrorIs(t, cache.Start(), types.ErrAlreadyRunning)
	require.NoError(t, cache.Stop())
	require.ErrorIs(t, cache.Stop(), types.ErrNotRunning)
}
