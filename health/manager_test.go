package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

type healthConfig struct{}

func (healthConfig) Load() error { return nil }
func (healthConfig) GetConfig() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "test-cache",
		Version: "1.2.3",
		Health:  &types.HealthConfig{Enabled: true},
	}
}
func (healthConfig) GetValue(string, interface{}) interface{} { return nil }
func (healthConfig) GetAs(string, interface{}) error          { return nil }

func newTestHealth(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(t.Context(), healthConfig{}, logger.NewZapWrapper(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, manager.Start())
	t.Cleanup(func() { _ = manager.Stop() })

	return manager
}

func TestHealthCheckAggregation(t *testing.T) {
	manager := newTestHealth(t)

	manager.RegisterChecker("storage", func(context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusHealthy}
	})
	manager.RegisterChecker("broker", func(context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusUnhealthy, Message: "connection refused"}
	})

	report := manager.Check(context.Background())

	require.Equal(t, types.StatusUnhealthy, report.Status)
	require.Equal(t, "test-cache", report.Service.Name)
	require.Equal(t, "1.2.3", report.Service.Version)
	require.Equal(t, 2, report.Summary.Total)
	require.Equal(t, 1, report.Summary.Healthy)
	require.Equal(t, 1, report.Summary.Unhealthy)
	require.Equal(t, "broker", report.Checks["broker"].Name)
	require.NotZero(t, report.Checks["storage"].LastCheck)
}

func TestHealthCheckAllHealthy(t *testing.T) {
	manager := newTestHealth(t)

	manager.RegisterChecker("storage", func(context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	report := manager.Check(context.Background())
	require.Equal(t, types.StatusHealthy, report.Status)
}

func TestHealthCheckPanicIsolated(t *testing.T) {
	manager := newTestHealth(t)

	manager.RegisterChecker("flaky", func(context.Context) types.HealthCheck {
		panic("boom")
	})
	manager.RegisterChecker("steady", func(context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	report := manager.Check(context.Background())

	require.Equal(t, types.StatusUnhealthy, report.Status)
	require.Equal(t, types.StatusUnhealthy, report.Checks["flaky"].Status)
	require.Contains(t, report.Checks["flaky"].Message, "panicked")
	require.Equal(t, types.StatusHealthy, report.Checks["steady"].Status)
}

func TestHealthCheckNoCheckers(t *testing.T) {
	manager := newTestHealth(t)

	report := manager.Check(context.Background())
	require.Equal(t, types.StatusHealthy, report.Status)
	require.Zero(t, report.Summary.Total)
}
