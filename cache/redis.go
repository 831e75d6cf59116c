package cache

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

const redisScanCount = 100

type RedisConfig struct {
	Host               string        `json:"host" yaml:"host"`
	Port               int           `json:"port" yaml:"port"`
	Password           string        `json:"password" yaml:"password"`
	DB                 int           `json:"db" yaml:"db"`
	PoolSize           int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConnections int           `json:"min_idle_connections" yaml:"min_idle_connections"`
	DialTimeout        time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout        time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout" yaml:"write_timeout"`
	KeyPrefix          string        `json:"key_prefix" yaml:"key_prefix"`
}

// RedisCache keeps the engine's sweep-driven expiration semantics on top of
// redis: entries are stored without a redis TTL, so an expired entry stays
// readable until InvalidateExpired removes it, exactly like the file
// backend.
type RedisCache struct {
	ctx        context.Context
	logger     types.Logger
	config     *RedisConfig
	client     *redis.Client
	defaultTTL time.Duration
	journal    types.SnapshotJournal
	events     types.EventBroker

	countersMu sync.Mutex
	counters   types.CacheCounters

	started int32
}

func NewRedisCache(
	ctx context.Context,
	logger types.Logger,
	config *types.CacheConfig,
	journal types.SnapshotJournal,
	events types.EventBroker,
) (types.CacheManager, error) {
	redisConfig := &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		DB:                 0,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		KeyPrefix:          "sai-cache",
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	defaultTTL := config.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisConfig.Host + ":" + strconv.Itoa(redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConnections,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	cache := &RedisCache{
		ctx:        ctx,
		logger:     logger,
		config:     redisConfig,
		client:     client,
		defaultTTL: defaultTTL,
		journal:    journal,
		events:     events,
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisConfig.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", redisConfig.Host),
		zap.String("key_prefix", redisConfig.KeyPrefix))

	return cache, nil
}

func (r *RedisCache) Set(params types.SetParams) (string, error) {
	if params.Name == "" {
		return "", types.ErrCacheKeyEmpty
	}

	ttl := params.TTL
	switch {
	case ttl == types.DefaultExpiration:
		ttl = r.defaultTTL
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

	fullKey := r.fullKey(DeriveKey(params.Prefix, params.Name))

	if err := r.client.Set(r.ctx, fullKey, data, 0).Err(); err != nil {
		return "", types.WrapError(err, "failed to write cache entry")
	}

	return fullKey, nil
}

func (r *RedisCache) Get(params types.GetParams) (interface{}, error) {
	if params.Name == "" {
		return nil, types.ErrCacheKeyEmpty
	}

	key := DeriveKey(params.Prefix, params.Name)

	result, err := r.client.Get(r.ctx, r.fullKey(key)).Result()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return nil, types.Errorf(types.ErrCacheEntryNotFound, "key: %s", key)
		}
		return nil, types.WrapError(err, "failed to read cache entry")
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal([]byte(result), &entry); err != nil {
		return nil, types.Errorf(types.ErrCacheEntryMalformed, "key: %s: %v", key, err)
	}

	return entry.Payload, nil
}

func (r *RedisCache) InvalidateExpired() (*types.SweepReport, error) {
	keys, err := r.scanKeys()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	nowMillis := now.UnixMilli()

	var totalBytes int64
	deleted := 0
	reports := make([]types.EntryReport, 0, len(keys))

	for _, fullKey := range keys {
		result, err := r.client.Get(r.ctx, fullKey).Result()
		if err != nil {
			// Raced with a concurrent deletion or a transient failure;
			// skip this entry for the cycle.
			if !types.IsError(err, redis.Nil) {
				r.logger.Warn("Skipping unreadable cache entry",
					zap.String("key", fullKey), zap.Error(err))
			}
			continue
		}

		size := int64(len(result))
		totalBytes += size

		var entry types.CacheEntry
		if err := utils.Unmarshal([]byte(result), &entry); err != nil {
			r.logger.Warn("Skipping malformed cache entry",
				zap.String("key", fullKey), zap.Error(err))
			continue
		}

		var expiresIn *float64
		if entry.Expiration != nil {
			remaining := float64(*entry.Expiration-nowMillis) / 1000
			if remaining < 0 {
				remaining = 0
			}
			expiresIn = &remaining
		}

		expired := expiresIn != nil && *expiresIn <= 0
		if expired {
			if err := r.client.Del(r.ctx, fullKey).Err(); err != nil {
				r.logger.Error("Failed to delete expired cache entry",
					zap.String("key", fullKey), zap.Error(err))
			} else {
				deleted++
			}
		}

		reports = append(reports, types.EntryReport{
			Name:      r.rawName(fullKey),
			TTL:       entry.TTL,
			ExpiresIn: expiresIn,
			Size:      utils.HumanSize(size),
			SizeBytes: size,
			Valid:     !expired,
		})
	}

	r.countersMu.Lock()
	r.counters.Sweeps++
	counters := r.counters
	r.countersMu.Unlock()

	snapshot := types.Snapshot{
		ID:         strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp:  now,
		TotalBytes: totalBytes,
		Counters:   counters,
	}

	if err := r.journal.Append(r.ctx, snapshot); err != nil {
		r.logger.Error("Failed to append sweep snapshot", zap.Error(err))
	}

	history, err := r.journal.List(r.ctx)
	if err != nil {
		r.logger.Error("Failed to load sweep history", zap.Error(err))
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

	r.publish(types.EventSweepCompleted, report)

	return report, nil
}

func (r *RedisCache) FlushAll() (*types.FlushReport, error) {
	keys, err := r.scanKeys()
	if err != nil {
		return nil, err
	}

	deleted := 0
	for _, fullKey := range keys {
		if err := r.client.Del(r.ctx, fullKey).Err(); err != nil {
			return nil, types.WrapError(err, "failed to delete cache entry "+fullKey)
		}
		deleted++
	}

	r.countersMu.Lock()
	r.counters.FullFlushes++
	invocations := r.counters.FullFlushes
	r.countersMu.Unlock()

	report := &types.FlushReport{
		Invocations: invocations,
		Deleted:     deleted,
	}

	r.publish(types.EventFlushCompleted, report)

	return report, nil
}

func (r *RedisCache) FlushByPattern(orgPattern, pattern string) (*types.FlushReport, error) {
	orgRe, err := regexp.Compile(orgPattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "org pattern: %v", err)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "pattern: %v", err)
	}

	r.countersMu.Lock()
	r.counters.PatternFlushes++
	invocations := r.counters.PatternFlushes
	r.countersMu.Unlock()

	report := &types.FlushReport{Invocations: invocations}

	keys, err := r.scanKeys()
	if err != nil {
		r.logger.Error("Failed to list cache entries for pattern flush", zap.Error(err))
		report.Error = err.Error()
		return report, nil
	}

	for _, fullKey := range keys {
		name := r.rawName(fullKey)
		if !orgRe.MatchString(name) || !re.MatchString(name) {
			continue
		}

		if err := r.client.Del(r.ctx, fullKey).Err(); err != nil {
			r.logger.Error("Failed to delete cache entry during pattern flush",
				zap.String("key", fullKey), zap.Error(err))
			report.Error = err.Error()
			return report, nil
		}
		report.Deleted++
	}

	r.publish(types.EventPatternFlushCompleted, report)

	return report, nil
}

func (r *RedisCache) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (r *RedisCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrNotRunning
	}
	return r.client.Close()
}

func (r *RedisCache) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisCache) fullKey(key string) string {
	return r.config.KeyPrefix + ":" + key
}

func (r *RedisCache) rawName(fullKey string) string {
	return strings.TrimPrefix(fullKey, r.config.KeyPrefix+":")
}

func (r *RedisCache) scanKeys() ([]string, error) {
	var keys []string

	iter := r.client.Scan(r.ctx, 0, r.config.KeyPrefix+":*", redisScanCount).Iterator()
	for iter.Next(r.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, types.WrapError(err, "failed to scan cache keys")
	}

	return keys, nil
}

func (r *RedisCache) publish(event string, payload interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(event, payload); err != nil {
		r.logger.Warn("Failed to publish cache event",
			zap.String("event", event), zap.Error(err))
	}
}
