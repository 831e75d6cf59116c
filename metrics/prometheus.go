package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

type PrometheusConfig struct {
	Namespace       string            `yaml:"namespace" json:"namespace"`
	Subsystem       string            `yaml:"subsystem" json:"subsystem"`
	Labels          map[string]string `yaml:"labels" json:"labels"`
	EnableGoMetrics bool              `yaml:"enable_go_metrics" json:"enable_go_metrics"`
}

type PrometheusMetrics struct {
	ctx        context.Context
	logger     types.Logger
	config     *PrometheusConfig
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
	running    int32
}

func NewPrometheusMetrics(ctx context.Context, logger types.Logger, config *types.MetricsConfig) (types.MetricsManager, error) {
	promConfig := &PrometheusConfig{
		Namespace:       "sai_cache",
		Labels:          make(map[string]string),
		EnableGoMetrics: true,
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, promConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal prometheus config")
		}
	}

	registry := prometheus.NewRegistry()
	if promConfig.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	metrics := &PrometheusMetrics{
		ctx:        ctx,
		logger:     logger,
		config:     promConfig,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	logger.Info("Prometheus metrics initialized",
		zap.String("namespace", promConfig.Namespace),
		zap.Bool("go_metrics", promConfig.EnableGoMetrics))

	return metrics, nil
}

func (p *PrometheusMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (p *PrometheusMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (p *PrometheusMetrics) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

func (p *PrometheusMetrics) Counter(name string, labels map[string]string) types.Counter {
	vec := p.counterVec(name, labelNames(labels))
	return &promCounter{counter: vec.With(prometheus.Labels(labels))}
}

func (p *PrometheusMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	vec := p.gaugeVec(name, labelNames(labels))
	return &promGauge{gauge: vec.With(prometheus.Labels(labels))}
}

func (p *PrometheusMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	vec := p.histogramVec(name, buckets, labelNames(labels))
	return &promHistogram{observer: vec.With(prometheus.Labels(labels))}
}

func (p *PrometheusMetrics) HTTPHandler() fasthttp.RequestHandler {
	handler := promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return fasthttpadaptor.NewFastHTTPHandler(handler)
}

func (p *PrometheusMetrics) GetStats() ([]byte, error) {
	p.mu.RLock()
	stats := types.MetricsStats{
		TotalMetrics:     len(p.counters) + len(p.gauges) + len(p.histograms),
		CounterMetrics:   len(p.counters),
		GaugeMetrics:     len(p.gauges),
		HistogramMetrics: len(p.histograms),
		LastUpdate:       time.Now(),
	}
	p.mu.RUnlock()

	return utils.Marshal(stats)
}

func (p *PrometheusMetrics) counterVec(name string, names []string) *prometheus.CounterVec {
	p.mu.RLock()
	vec, exists := p.counters[name]
	p.mu.RUnlock()
	if exists {
		return vec
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, exists = p.counters[name]; exists {
		return vec
	}

	vec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		ConstLabels: prometheus.Labels(p.config.Labels),
	}, names)

	p.registry.MustRegister(vec)
	p.counters[name] = vec
	return vec
}

func (p *PrometheusMetrics) gaugeVec(name string, names []string) *prometheus.GaugeVec {
	p.mu.RLock()
	vec, exists := p.gauges[name]
	p.mu.RUnlock()
	if exists {
		return vec
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, exists = p.gauges[name]; exists {
		return vec
	}

	vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		ConstLabels: prometheus.Labels(p.config.Labels),
	}, names)

	p.registry.MustRegister(vec)
	p.gauges[name] = vec
	return vec
}

func (p *PrometheusMetrics) histogramVec(name string, buckets []float64, names []string) *prometheus.HistogramVec {
	p.mu.RLock()
	vec, exists := p.histograms[name]
	p.mu.RUnlock()
	if exists {
		return vec
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, exists = p.histograms[name]; exists {
		return vec
	}

	vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Buckets:     buckets,
		ConstLabels: prometheus.Labels(p.config.Labels),
	}, names)

	p.registry.MustRegister(vec)
	p.histograms[name] = vec
	return vec
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type promCounter struct {
	counter prometheus.Counter
}

func (c *promCounter) Inc() {
	c.counter.Inc()
}

func (c *promCounter) Add(value float64) {
	c.counter.Add(value)
}

func (c *promCounter) Get() float64 {
	var m dto.Metric
	if err := c.counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (g *promGauge) Set(value float64) {
	g.gauge.Set(value)
}

func (g *promGauge) Inc() {
	g.gauge.Inc()
}

func (g *promGauge) Dec() {
	g.gauge.Dec()
}

func (g *promGauge) Add(value float64) {
	g.gauge.Add(value)
}

func (g *promGauge) Sub(value float64) {
	g.gauge.Sub(value)
}

func (g *promGauge) Get() float64 {
	var m dto.Metric
	if err := g.gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

type promHistogram struct {
	observer prometheus.Observer
}

func (h *promHistogram) Observe(value float64) {
	h.observer.Observe(value)
}

func (h *promHistogram) ObserveDuration(start time.Time) {
	h.observer.Observe(time.Since(start).Seconds())
}

func (h *promHistogram) GetCount() uint64 {
	if histogram, ok := h.observer.(prometheus.Histogram); ok {
		var m dto.Metric
		if err := histogram.Write(&m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func (h *promHistogram) GetSum() float64 {
	if histogram, ok := h.observer.(prometheus.Histogram); ok {
		var m dto.Metric
		if err := histogram.Write(&m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleSum()
	}
	return 0
}
