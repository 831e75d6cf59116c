package cache

import (
	"context"
	"time"

	"github.com/saiset-co/sai-cache/types"
)

var customCacheCreators = make(map[string]types.CacheManagerCreator)

func RegisterCacheManager(cacheManagerName string, creator types.CacheManagerCreator) {
	customCacheCreators[cacheManagerName] = creator
}

// NewCacheManager builds the backend selected by the cache config and wraps
// it with operation metrics when a metrics manager is supplied. The journal
// and broker are owned by the caller; backends only use them.
func NewCacheManager(
	ctx context.Context,
	config types.ConfigManager,
	logger types.Logger,
	metrics types.MetricsManager,
	journal types.SnapshotJournal,
	events types.EventBroker,
) (types.CacheManager, error) {
	cacheConfig := config.GetConfig().Cache

	if cacheConfig == nil || !cacheConfig.Enabled {
		return nil, types.ErrCacheIsDisabled
	}

	var impl types.CacheManager
	var err error

	switch cacheConfig.Type {
	case "file":
		impl, err = NewFileCache(ctx, logger, cacheConfig, journal, events)
	case "memory":
		impl, err = NewMemoryCache(ctx, logger, cacheConfig, journal, events)
	case "redis":
		impl, err = NewRedisCache(ctx, logger, cacheConfig, journal, events)
	default:
		if creator, exists := customCacheCreators[cacheConfig.Type]; exists {
			impl, err = creator(cacheConfig)
		} else {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", cacheConfig.Type)
		}
	}

	if err != nil {
		return nil, err
	}

	if metrics == nil {
		return impl, nil
	}

	return newInstrumentedCacheManager(logger, metrics, impl), nil
}

type instrumentedCacheManager struct {
	impl    types.CacheManager
	logger  types.Logger
	metrics types.MetricsManager
}

func newInstrumentedCacheManager(logger types.Logger, metrics types.MetricsManager, impl types.CacheManager) types.CacheManager {
	return &instrumentedCacheManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

func (icm *instrumentedCacheManager) Set(params types.SetParams) (string, error) {
	start := time.Now()
	location, err := icm.impl.Set(params)
	icm.recordMetric("set", resultOf(err), time.Since(start))
	return location, err
}

func (icm *instrumentedCacheManager) Get(params types.GetParams) (interface{}, error) {
	start := time.Now()
	payload, err := icm.impl.Get(params)

	result := "hit"
	if err != nil {
		result = "error"
		if types.IsError(err, types.ErrCacheEntryNotFound) {
			result = "miss"
		}
	}

	icm.recordMetric("get", result, time.Since(start))
	return payload, err
}

func (icm *instrumentedCacheManager) InvalidateExpired() (*types.SweepReport, error) {
	start := time.Now()
	report, err := icm.impl.InvalidateExpired()
	icm.recordMetric("sweep", resultOf(err), time.Since(start))

	if report != nil {
		icm.metrics.Gauge("cache_size_bytes", nil).Set(float64(report.TotalBytes))
		icm.metrics.Counter("cache_swept_entries_total", nil).Add(float64(report.Deleted))
	}

	return report, err
}

func (icm *instrumentedCacheManager) FlushAll() (*types.FlushReport, error) {
	start := time.Now()
	report, err := icm.impl.FlushAll()
	icm.recordMetric("flush_all", resultOf(err), time.Since(start))
	return report, err
}

func (icm *instrumentedCacheManager) FlushByPattern(orgPattern, pattern string) (*types.FlushReport, error) {
	start := time.Now()
	report, err := icm.impl.FlushByPattern(orgPattern, pattern)

	result := resultOf(err)
	if err == nil && report != nil && report.Error != "" {
		result = "reported_error"
	}

	icm.recordMetric("flush_pattern", result, time.Since(start))
	return report, err
}

func (icm *instrumentedCacheManager) Start() error {
	return icm.impl.Start()
}

func (icm *instrumentedCacheManager) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedCacheManager) IsRunning() bool {
	return icm.impl.IsRunning()
}

// HealthChecker delegates to the wrapped backend when it exposes one.
func (icm *instrumentedCacheManager) HealthChecker() types.HealthChecker {
	if checkable, ok := icm.impl.(interface {
		HealthChecker() types.HealthChecker
	}); ok {
		return checkable.HealthChecker()
	}

	return func(ctx context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusUnknown}
	}
}

func (icm *instrumentedCacheManager) recordMetric(operation, result string, duration time.Duration) {
	opCounter := icm.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	})
	opCounter.Inc()

	opDuration := icm.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	)
	opDuration.Observe(duration.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
