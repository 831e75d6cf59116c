package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

const (
	fallbackTTL      = 60 * time.Second
	compressedSuffix = ".br"

	entryFileMode = 0644
	cacheDirMode  = 0755
)

type FileConfig struct {
	BasePath string `json:"base_path" yaml:"base_path"`

	// Compress stores entries brotli-compressed with a ".br" suffix.
	// Off by default so the plain JSON on-disk format is preserved.
	Compress bool `json:"compress" yaml:"compress"`
}

// FileCache persists one JSON document per derived key under a base
// directory. Entries survive restarts; expiration is enforced only by the
// explicit sweep, never on read. There is no locking around entry files:
// concurrent writes to one key race at the filesystem level and a reader
// racing a writer may observe a torn document as a malformed-entry error.
type FileCache struct {
	ctx        context.Context
	logger     types.Logger
	config     *FileConfig
	basePath   string
	defaultTTL time.Duration
	journal    types.SnapshotJournal
	events     types.EventBroker

	// countersMu guards the invocation counters; everything else on this
	// struct is immutable after construction.
	countersMu sync.Mutex
	counters   types.CacheCounters

	started int32
}

func NewFileCache(
	ctx context.Context,
	logger types.Logger,
	config *types.CacheConfig,
	journal types.SnapshotJournal,
	events types.EventBroker,
) (types.CacheManager, error) {
	fileConfig := &FileConfig{
		BasePath: "cache",
		Compress: false,
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, fileConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal file cache config")
		}
	}

	basePath, err := filepath.Abs(fileConfig.BasePath)
	if err != nil {
		return nil, types.WrapError(err, "failed to resolve cache base path")
	}

	defaultTTL := config.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}

	cache := &FileCache{
		ctx:        ctx,
		logger:     logger,
		config:     fileConfig,
		basePath:   basePath,
		defaultTTL: defaultTTL,
		journal:    journal,
		events:     events,
	}

	logger.Info("File cache initialized",
		zap.String("base_path", basePath),
		zap.Duration("default_ttl", defaultTTL),
		zap.Bool("compress", fileConfig.Compress))

	return cache, nil
}

// DeriveKey maps an optional prefix and a logical name to the stable,
// filesystem-safe storage identifier. Only the name is digested; the prefix
// is prepended as a literal label, so the same name under two prefixes
// produces colliding digests distinguished only by that label.
func DeriveKey(prefix, name string) string {
	sum := sha256.Sum256([]byte(name))
	key := "hash_" + hex.EncodeToString(sum[:])
	if prefix == "" {
		return key
	}
	return prefix + " " + key
}

func (f *FileCache) Set(params types.SetParams) (string, error) {
	if params.Name == "" {
		return "", types.ErrCacheKeyEmpty
	}

	if err := os.MkdirAll(f.basePath, cacheDirMode); err != nil {
		return "", types.WrapError(err, "failed to create cache directory")
	}

	ttl := params.TTL
	switch {
	case ttl == types.DefaultExpiration:
		ttl = f.defaultTTL
	case ttl < 0:
		ttl = 0
	}

	entry := &types.CacheEntry{
		Payload: params.Payload,
		TTL:     ttl.Milliseconds(),
	}
	if ttl > 0 {
		expiration := time.Now().Add(ttl).UnixMilli()
		entry.Expiration = &expiration
	}

	data, err := utils.Marshal(entry)
	if err != nil {
		return "", types.WrapError(err, "failed to marshal cache entry")
	}

	path := filepath.Join(f.basePath, f.fileName(params.Prefix, params.Name))

	if f.config.Compress {
		data, err = compressEntry(data)
		if err != nil {
			return "", types.WrapError(err, "failed to compress cache entry")
		}
	}

	if err := os.WriteFile(path, data, entryFileMode); err != nil {
		return "", types.WrapError(err, "failed to write cache entry")
	}

	return path, nil
}

func (f *FileCache) Get(params types.GetParams) (interface{}, error) {
	if params.Name == "" {
		return nil, types.ErrCacheKeyEmpty
	}

	name := f.fileName(params.Prefix, params.Name)
	path := filepath.Join(f.basePath, name)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Errorf(types.ErrCacheEntryNotFound, "key: %s", name)
		}
		return nil, types.WrapError(err, "failed to stat cache entry")
	}

	if !info.Mode().IsRegular() {
		return nil, types.Errorf(types.ErrCacheEntryNotFound, "not a regular file: %s", name)
	}

	entry, err := f.readEntry(name)
	if err != nil {
		return nil, err
	}

	return entry.Payload, nil
}

// InvalidateExpired walks the storage directory once and deletes every
// entry whose remaining lifetime has reached zero. Non-expiring entries and
// entries that cannot be inspected are left alone; a failed deletion is
// isolated to its file. Exactly one snapshot is appended per invocation.
func (f *FileCache) InvalidateExpired() (*types.SweepReport, error) {
	entries, err := f.listEntries()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var totalBytes int64
	deleted := 0
	reports := make([]types.EntryReport, 0, len(entries))

	for _, dirEntry := range entries {
		info, err := dirEntry.Info()
		if err != nil {
			f.logger.Warn("Skipping unreadable cache entry",
				zap.String("file", dirEntry.Name()), zap.Error(err))
			continue
		}

		totalBytes += info.Size()

		ttlInfo, err := f.validateTTL(dirEntry.Name())
		if err != nil {
			f.logger.Warn("Skipping malformed cache entry",
				zap.String("file", dirEntry.Name()), zap.Error(err))
			continue
		}

		expired := ttlInfo.ExpiresIn != nil && *ttlInfo.ExpiresIn <= 0
		if expired {
			if err := os.Remove(filepath.Join(f.basePath, dirEntry.Name())); err != nil {
				f.logger.Error("Failed to delete expired cache entry",
					zap.String("file", dirEntry.Name()), zap.Error(err))
			} else {
				deleted++
			}
		}

		reports = append(reports, types.EntryReport{
			Name:      dirEntry.Name(),
			TTL:       ttlInfo.TTL,
			ExpiresIn: ttlInfo.ExpiresIn,
			Size:      utils.HumanSize(info.Size()),
			SizeBytes: info.Size(),
			Valid:     !expired,
		})
	}

	f.countersMu.Lock()
	f.counters.Sweeps++
	counters := f.counters
	f.countersMu.Unlock()

	snapshot := types.Snapshot{
		ID:         strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp:  now,
		TotalBytes: totalBytes,
		Counters:   counters,
	}

	if err := f.journal.Append(f.ctx, snapshot); err != nil {
		f.logger.Error("Failed to append sweep snapshot", zap.Error(err))
	}

	history, err := f.journal.List(f.ctx)
	if err != nil {
		f.logger.Error("Failed to load sweep history", zap.Error(err))
	}

	report := &types.SweepReport{
		Counters:   counters,
		Deleted:    deleted,
		TotalBytes: totalBytes,
		TotalMB:    utils.SizeMB(totalBytes),
		TotalHuman: utils.CombinedSize(totalBytes),
		Entries:    reports,
		History:    history,
	}

	f.publish(types.EventSweepCompleted, report)

	f.logger.Debug("Expiry sweep completed",
		zap.Int("inspected", len(reports)),
		zap.Int("deleted", deleted),
		zap.Int64("total_bytes", totalBytes))

	return report, nil
}

// FlushAll deletes every entry unconditionally. The first deletion failure
// aborts the whole call; partially flushed state is left behind.
func (f *FileCache) FlushAll() (*types.FlushReport, error) {
	entries, err := f.listEntries()
	if err != nil {
		return nil, err
	}

	deleted := 0
	for _, dirEntry := range entries {
		if err := os.Remove(filepath.Join(f.basePath, dirEntry.Name())); err != nil {
			return nil, types.WrapError(err, "failed to delete cache entry "+dirEntry.Name())
		}
		deleted++
	}

	f.countersMu.Lock()
	f.counters.FullFlushes++
	invocations := f.counters.FullFlushes
	f.countersMu.Unlock()

	report := &types.FlushReport{
		Invocations: invocations,
		Deleted:     deleted,
	}

	f.publish(types.EventFlushCompleted, report)

	f.logger.Info("Cache flushed", zap.Int("deleted", deleted))

	return report, nil
}

// FlushByPattern deletes entries whose raw on-disk name matches both
// patterns. Malformed patterns fail fast; filesystem failures after that
// point are reported in the result instead of propagated, with the counter
// already incremented.
func (f *FileCache) FlushByPattern(orgPattern, pattern string) (*types.FlushReport, error) {
	orgRe, err := regexp.Compile(orgPattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "org pattern: %v", err)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "pattern: %v", err)
	}

	f.countersMu.Lock()
	f.counters.PatternFlushes++
	invocations := f.counters.PatternFlushes
	f.countersMu.Unlock()

	report := &types.FlushReport{Invocations: invocations}

	entries, err := f.listEntries()
	if err != nil {
		f.logger.Error("Failed to list cache entries for pattern flush", zap.Error(err))
		report.Error = err.Error()
		return report, nil
	}

	for _, dirEntry := range entries {
		name := dirEntry.Name()
		if !orgRe.MatchString(name) || !re.MatchString(name) {
			continue
		}

		if err := os.Remove(filepath.Join(f.basePath, name)); err != nil {
			f.logger.Error("Failed to delete cache entry during pattern flush",
				zap.String("file", name), zap.Error(err))
			report.Error = err.Error()
			return report, nil
		}
		report.Deleted++
	}

	f.publish(types.EventPatternFlushCompleted, report)

	return report, nil
}

func (f *FileCache) Start() error {
	if !atomic.CompareAndSwapInt32(&f.started, 0, 1) {
		return types.ErrAlreadyRunning
	}

	if err := os.MkdirAll(f.basePath, cacheDirMode); err != nil {
		atomic.StoreInt32(&f.started, 0)
		return types.WrapError(err, "failed to create cache directory")
	}

	return nil
}

func (f *FileCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&f.started, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (f *FileCache) IsRunning() bool {
	return atomic.LoadInt32(&f.started) == 1
}

// HealthChecker reports whether the storage directory is reachable.
func (f *FileCache) HealthChecker() types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		start := time.Now()
		check := types.HealthCheck{
			Name:      "cache_storage",
			Status:    types.StatusHealthy,
			LastCheck: start,
		}

		info, err := os.Stat(f.basePath)
		switch {
		case os.IsNotExist(err):
			// Created lazily on first write.
			check.Message = "storage directory not created yet"
		case err != nil:
			check.Status = types.StatusUnhealthy
			check.Message = err.Error()
		case !info.IsDir():
			check.Status = types.StatusUnhealthy
			check.Message = "storage path is not a directory"
		}

		check.Duration = time.Since(start)
		return check
	}
}

type ttlInfo struct {
	// TTL is the stored value in milliseconds.
	TTL int64
	// ExpiresIn is the remaining lifetime in seconds clamped at zero,
	// nil for non-expiring entries.
	ExpiresIn *float64
}

// validateTTL inspects a single on-disk entry by its raw file name. It is
// only called from the sweep, which swallows the error and skips the entry.
func (f *FileCache) validateTTL(fileName string) (*ttlInfo, error) {
	entry, err := f.readEntry(fileName)
	if err != nil {
		return nil, err
	}

	info := &ttlInfo{TTL: entry.TTL}

	if entry.Expiration != nil {
		remaining := float64(*entry.Expiration-time.Now().UnixMilli()) / 1000
		if remaining < 0 {
			remaining = 0
		}
		info.ExpiresIn = &remaining
	}

	return info, nil
}

func (f *FileCache) fileName(prefix, name string) string {
	key := DeriveKey(prefix, name)
	if f.config.Compress {
		return key + compressedSuffix
	}
	return key
}

func (f *FileCache) readEntry(fileName string) (*types.CacheEntry, error) {
	data, err := os.ReadFile(filepath.Join(f.basePath, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Errorf(types.ErrCacheEntryNotFound, "key: %s", fileName)
		}
		return nil, types.WrapError(err, "failed to read cache entry")
	}

	if len(fileName) > len(compressedSuffix) && fileName[len(fileName)-len(compressedSuffix):] == compressedSuffix {
		data, err = decompressEntry(data)
		if err != nil {
			return nil, types.Errorf(types.ErrCacheEntryMalformed, "key: %s: %v", fileName, err)
		}
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal(data, &entry); err != nil {
		return nil, types.Errorf(types.ErrCacheEntryMalformed, "key: %s: %v", fileName, err)
	}

	return &entry, nil
}

// listEntries snapshots the storage directory. Entries created after the
// listing are untouched by the invoking sweep or flush. A directory that
// does not exist yet reads as empty.
func (f *FileCache) listEntries() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.WrapError(err, "failed to list cache directory")
	}

	files := entries[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry)
	}

	return files, nil
}

func (f *FileCache) publish(event string, payload interface{}) {
	if f.events == nil {
		return
	}
	if err := f.events.Publish(event, payload); err != nil {
		f.logger.Warn("Failed to publish cache event",
			zap.String("event", event), zap.Error(err))
	}
}

func compressEntry(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := brotli.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompressEntry(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
