package cache

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

// memoryEntry keeps the decoded entry together with the size its JSON
// encoding would occupy, so sweep reports stay comparable with the file
// backend.
type memoryEntry struct {
	entry *types.CacheEntry
	size  int64
}

// MemoryCache mirrors the file backend's semantics over a process-local
// map: Get never checks expiration, the sweep is the only eviction path for
// expired entries, and nothing survives a restart. Intended for tests and
// embedders that do not want disk persistence.
type MemoryCache struct {
	ctx        context.Context
	logger     types.Logger
	defaultTTL time.Duration
	journal    types.SnapshotJournal
	events     types.EventBroker

	mu   sync.RWMutex
	data map[string]*memoryEntry

	countersMu sync.Mutex
	counters   types.CacheCounters

	started int32
}

func NewMemoryCache(
	ctx context.Context,
	logger types.Logger,
	config *types.CacheConfig,
	journal types.SnapshotJournal,
	events types.EventBroker,
) (types.CacheManager, error) {
	defaultTTL := config.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}

	cache := &MemoryCache{
		ctx:        ctx,
		logger:     logger,
		defaultTTL: defaultTTL,
		journal:    journal,
		events:     events,
		data:       make(map[string]*memoryEntry),
	}

	logger.Info("Memory cache initialized", zap.Duration("default_ttl", defaultTTL))

	return cache, nil
}

func (m *MemoryCache) Set(params types.SetParams) (string, error) {
	if params.Name == "" {
		return "", types.ErrCacheKeyEmpty
	}

	ttl := params.TTL
	switch {
	case ttl == types.DefaultExpiration:
		ttl = m.defaultTTL
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

	key := DeriveKey(params.Prefix, params.Name)

	m.mu.Lock()
	m.data[key] = &memoryEntry{entry: entry, size: int64(len(data))}
	m.mu.Unlock()

	return key, nil
}

func (m *MemoryCache) Get(params types.GetParams) (interface{}, error) {
	if params.Name == "" {
		return nil, types.ErrCacheKeyEmpty
	}

	key := DeriveKey(params.Prefix, params.Name)

	m.mu.RLock()
	stored, exists := m.data[key]
	m.mu.RUnlock()

	if !exists {
		return nil, types.Errorf(types.ErrCacheEntryNotFound, "key: %s", key)
	}

	return stored.entry.Payload, nil
}

func (m *MemoryCache) InvalidateExpired() (*types.SweepReport, error) {
	now := time.Now()
	nowMillis := now.UnixMilli()

	var totalBytes int64
	deleted := 0

	m.mu.Lock()
	reports := make([]types.EntryReport, 0, len(m.data))
	for key, stored := range m.data {
		totalBytes += stored.size

		var expiresIn *float64
		if stored.entry.Expiration != nil {
			remaining := float64(*stored.entry.Expiration-nowMillis) / 1000
			if remaining < 0 {
				remaining = 0
			}
			expiresIn = &remaining
		}

		expired := expiresIn != nil && *expiresIn <= 0
		if expired {
			delete(m.data, key)
			deleted++
		}

		reports = append(reports, types.EntryReport{
			Name:      key,
			TTL:       stored.entry.TTL,
			ExpiresIn: expiresIn,
			Size:      utils.HumanSize(stored.size),
			SizeBytes: stored.size,
			Valid:     !expired,
		})
	}
	m.mu.Unlock()

	m.countersMu.Lock()
	m.counters.Sweeps++
	counters := m.counters
	m.countersMu.Unlock()

	snapshot := types.Snapshot{
		ID:         strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp:  now,
		TotalBytes: totalBytes,
		Counters:   counters,
	}

	if err := m.journal.Append(m.ctx, snapshot); err != nil {
		m.logger.Error("Failed to append sweep snapshot", zap.Error(err))
	}

	history, err := m.journal.List(m.ctx)
	if err != nil {
		m.logger.Error("Failed to load sweep history", zap.Error(err))
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

	m.publish(types.EventSweepCompleted, report)

	return report, nil
}

func (m *MemoryCache) FlushAll() (*types.FlushReport, error) {
	m.mu.Lock()
	deleted := len(m.data)
	m.data = make(map[string]*memoryEntry)
	m.mu.Unlock()

	m.countersMu.Lock()
	m.counters.FullFlushes++
	invocations := m.counters.FullFlushes
	m.countersMu.Unlock()

	report := &types.FlushReport{
		Invocations: invocations,
		Deleted:     deleted,
	}

	m.publish(types.EventFlushCompleted, report)

	return report, nil
}

func (m *MemoryCache) FlushByPattern(orgPattern, pattern string) (*types.FlushReport, error) {
	orgRe, err := regexp.Compile(orgPattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "org pattern: %v", err)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "pattern: %v", err)
	}

	m.countersMu.Lock()
	m.counters.PatternFlushes++
	invocations := m.counters.PatternFlushes
	m.countersMu.Unlock()

	report := &types.FlushReport{Invocations: invocations}

	m.mu.Lock()
	for key := range m.data {
		if orgRe.MatchString(key) && re.MatchString(key) {
			delete(m.data, key)
			report.Deleted++
		}
	}
	m.mu.Unlock()

	m.publish(types.EventPatternFlushCompleted, report)

	return report, nil
}

func (m *MemoryCache) Start() error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (m *MemoryCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.started, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return atomic.LoadInt32(&m.started) == 1
}

func (m *MemoryCache) publish(event string, payload interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(event, payload); err != nil {
		m.logger.Warn("Failed to publish cache event",
			zap.String("event", event), zap.Error(err))
	}
}
