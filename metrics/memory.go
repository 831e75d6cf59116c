package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

// MemoryMetrics is a dependency-free backend for tests and embedders that
// do not scrape. Values are queryable through the same interface the
// prometheus backend implements.
type MemoryMetrics struct {
	ctx        context.Context
	logger     types.Logger
	mu         sync.RWMutex
	counters   map[string]*memCounter
	gauges     map[string]*memGauge
	histograms map[string]*memHistogram
	running    int32
}

func NewMemoryMetrics(ctx context.Context, logger types.Logger, _ *types.MetricsConfig) (types.MetricsManager, error) {
	metrics := &MemoryMetrics{
		ctx:        ctx,
		logger:     logger,
		counters:   make(map[string]*memCounter),
		gauges:     make(map[string]*memGauge),
		histograms: make(map[string]*memHistogram),
	}

	logger.Debug("Memory metrics initialized")

	return metrics, nil
}

func (m *MemoryMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (m *MemoryMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (m *MemoryMetrics) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *MemoryMetrics) Counter(name string, labels map[string]string) types.Counter {
	key := metricKey(name, labels)

	m.mu.RLock()
	counter, exists := m.counters[key]
	m.mu.RUnlock()
	if exists {
		return counter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists = m.counters[key]; exists {
		return counter
	}

	counter = &memCounter{}
	m.counters[key] = counter
	return counter
}

func (m *MemoryMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	key := metricKey(name, labels)

	m.mu.RLock()
	gauge, exists := m.gauges[key]
	m.mu.RUnlock()
	if exists {
		return gauge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists = m.gauges[key]; exists {
		return gauge
	}

	gauge = &memGauge{}
	m.gauges[key] = gauge
	return gauge
}

func (m *MemoryMetrics) Histogram(name string, _ []float64, labels map[string]string) types.Histogram {
	key := metricKey(name, labels)

	m.mu.RLock()
	histogram, exists := m.histograms[key]
	m.mu.RUnlock()
	if exists {
		return histogram
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists = m.histograms[key]; exists {
		return histogram
	}

	histogram = &memHistogram{}
	m.histograms[key] = histogram
	return histogram
}

func (m *MemoryMetrics) HTTPHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		stats, err := m.GetStats()
		if err != nil {
			ctx.Error("failed to collect metrics", fasthttp.StatusInternalServerError)
			m.logger.Error("Failed to collect metrics", zap.Error(err))
			return
		}

		ctx.SetContentType("application/json")
		ctx.SetBody(stats)
	}
}

func (m *MemoryMetrics) GetStats() ([]byte, error) {
	m.mu.RLock()
	stats := types.MetricsStats{
		TotalMetrics:     len(m.counters) + len(m.gauges) + len(m.histograms),
		CounterMetrics:   len(m.counters),
		GaugeMetrics:     len(m.gauges),
		HistogramMetrics: len(m.histograms),
		LastUpdate:       time.Now(),
	}
	m.mu.RUnlock()

	return utils.Marshal(stats)
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	return name + "{" + strings.Join(parts, ",") + "}"
}

type memCounter struct {
	mu    sync.Mutex
	value float64
}

func (c *memCounter) Inc() {
	c.Add(1)
}

func (c *memCounter) Add(value float64) {
	c.mu.Lock()
	c.value += value
	c.mu.Unlock()
}

func (c *memCounter) Get() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

type memGauge struct {
	mu    sync.Mutex
	value float64
}

func (g *memGauge) Set(value float64) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}

func (g *memGauge) Inc() {
	g.Add(1)
}

func (g *memGauge) Dec() {
	g.Add(-1)
}

func (g *memGauge) Add(value float64) {
	g.mu.Lock()
	g.value += value
	g.mu.Unlock()
}

func (g *memGauge) Sub(value float64) {
	g.Add(-value)
}

func (g *memGauge) Get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

type memHistogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
}

func (h *memHistogram) Observe(value float64) {
	h.mu.Lock()
	h.count++
	h.sum += value
	h.mu.Unlock()
}

func (h *memHistogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

func (h *memHistogram) GetCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *memHistogram) GetSum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}
