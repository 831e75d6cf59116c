package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

func newTestMetrics(t *testing.T) types.MetricsManager {
	t.Helper()

	metrics, err := NewMemoryMetrics(context.Background(), logger.NewZapWrapper(zap.NewNop()), nil)
	require.NoError(t, err)
	return metrics
}

func TestMemoryMetricsCounter(t *testing.T) {
	metrics := newTestMetrics(t)

	counter := metrics.Counter("cache_operations_total", map[string]string{"operation": "set"})
	counter.Inc()
	counter.Add(2)

	require.Equal(t, float64(3), counter.Get())

	// Same name and labels resolve to the same series.
	again := metrics.Counter("cache_operations_total", map[string]string{"operation": "set"})
	require.Equal(t, float64(3), again.Get())

	other := metrics.Counter("cache_operations_total", map[string]string{"operation": "get"})
	require.Zero(t, other.Get())
}

func TestMemoryMetricsGauge(t *testing.T) {
	metrics := newTestMetrics(t)

	gauge := metrics.Gauge("cache_size_bytes", nil)
	gauge.Set(100)
	gauge.Inc()
	gauge.Dec()
	gauge.Add(50)
	gauge.Sub(25)

	require.Equal(t, float64(125), gauge.Get())
}

func TestMemoryMetricsHistogram(t *testing.T) {
	metrics := newTestMetrics(t)

	histogram := metrics.Histogram("cache_operation_duration_seconds", nil, nil)
	histogram.Observe(0.5)
	histogram.Observe(1.5)

	require.Equal(t, uint64(2), histogram.GetCount())
	require.Equal(t, float64(2), histogram.GetSum())
}

func TestMetricKeyLabelOrder(t *testing.T) {
	a := metricKey("m", map[string]string{"x": "1", "y": "2"})
	b := metricKey("m", map[string]string{"y": "2", "x": "1"})
	require.Equal(t, a, b)

	require.Equal(t, "m", metricKey("m", nil))
	require.NotEqual(t, a, metricKey("m", map[string]string{"x": "1"}))
}

func TestMemoryMetricsStats(t *testing.T) {
	metrics := newTestMetrics(t)

	metrics.Counter("a", nil).Inc()
	metrics.Gauge("b", nil).Set(1)
	metrics.Histogram("c", nil, nil).ObserveDuration(time.Now())

	stats, err := metrics.GetStats()
	require.NoError(t, err)
	require.Contains(t, string(stats), `"total_metrics":3`)
}
