package sai

import (
	"sync/atomic"

	"github.com/saiset-co/sai-cache/cache"
	"github.com/saiset-co/sai-cache/events"
	"github.com/saiset-co/sai-cache/history"
	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/metrics"
	"github.com/saiset-co/sai-cache/types"
)

// Container holds the wired managers. Accessors panic when a component
// was never registered, which only happens on a programming error in the
// bootstrap sequence.
type Container struct {
	Config     atomic.Pointer[types.ConfigManager]
	Logger     atomic.Pointer[types.LoggerManager]
	Cache      atomic.Pointer[types.CacheManager]
	Journal    atomic.Pointer[types.SnapshotJournal]
	Events     atomic.Pointer[types.EventBroker]
	Cron       atomic.Pointer[types.CronManager]
	Metrics    atomic.Pointer[types.MetricsManager]
	Health     atomic.Pointer[types.HealthManager]
	HTTPServer atomic.Pointer[types.LifecycleManager]
}

var globalContainer *Container

func InitContainer() *Container {
	return &Container{}
}

func SetContainer(container *Container) {
	globalContainer = container
}

func Config() types.ConfigManager {
	if ptr := globalContainer.Config.Load(); ptr != nil {
		return *ptr
	}
	panic("ConfigManager not initialized")
}

func Logger() types.LoggerManager {
	if ptr := globalContainer.Logger.Load(); ptr != nil {
		return *ptr
	}
	panic("Logger not initialized")
}

func Cache() types.CacheManager {
	if ptr := globalContainer.Cache.Load(); ptr != nil {
		return *ptr
	}
	panic("CacheManager not initialized")
}

func Journal() types.SnapshotJournal {
	if ptr := globalContainer.Journal.Load(); ptr != nil {
		return *ptr
	}
	panic("SnapshotJournal not initialized")
}

func Cron() types.CronManager {
	if ptr := globalContainer.Cron.Load(); ptr != nil {
		return *ptr
	}
	panic("CronManager not initialized")
}

func RegisterCacheManager(cacheManagerName string, creator types.CacheManagerCreator) {
	cache.RegisterCacheManager(cacheManagerName, creator)
}

func RegisterMetricsManager(metricsManagerName string, creator types.MetricsManagerCreator) {
	metrics.RegisterMetricsManager(metricsManagerName, creator)
}

func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	logger.RegisterLogger(loggerName, creator)
}

func RegisterEventBroker(brokerName string, creator types.EventBrokerCreator) {
	events.RegisterEventBroker(brokerName, creator)
}

func RegisterJournal(journalName string, creator types.SnapshotJournalCreator) {
	history.RegisterJournal(journalName, creator)
}

func (c *Container) SetConfig(config types.ConfigManager) {
	c.Config.Store(&config)
}

func (c *Container) SetLogger(logger types.LoggerManager) {
	c.Logger.Store(&logger)
}

func (c *Container) SetCache(cache types.CacheManager) {
	c.Cache.Store(&cache)
}

func (c *Container) SetJournal(journal types.SnapshotJournal) {
	c.Journal.Store(&journal)
}

func (c *Container) SetEvents(events types.EventBroker) {
	c.Events.Store(&events)
}

func (c *Container) SetCron(cron types.CronManager) {
	c.Cron.Store(&cron)
}

func (c *Container) SetMetrics(metrics types.MetricsManager) {
	c.Metrics.Store(&metrics)
}

func (c *Container) SetHealth(health types.HealthManager) {
	c.Health.Store(&health)
}

func (c *Container) SetHTTPServer(server types.LifecycleManager) {
	c.HTTPServer.Store(&server)
}
