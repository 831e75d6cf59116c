package cron

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

type cronConfig struct{}

func (cronConfig) Load() error { return nil }
func (cronConfig) GetConfig() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "test",
		Version: "0.0.0",
		Cron:    &types.CronConfig{Enabled: true, Timezone: "UTC"},
	}
}
func (cronConfig) GetValue(string, interface{}) interface{} { return nil }
func (cronConfig) GetAs(string, interface{}) error          { return nil }

func newTestCron(t *testing.T) types.CronManager {
	t.Helper()

	manager, err := NewManager(t.Context(), cronConfig{}, logger.NewZapWrapper(zap.NewNop()), nil)
	require.NoError(t, err)
	return manager
}

func TestCronAddValidation(t *testing.T) {
	manager := newTestCron(t)

	require.ErrorIs(t, manager.Add("", "* * * * * *", func() {}), types.ErrCronJobNameIsEmpty)
	require.ErrorIs(t, manager.Add("job", "", func() {}), types.ErrCronExpressionInvalid)
	require.ErrorIs(t, manager.Add("job", "* * * * * *", nil), types.ErrCronJobIsNil)
	require.ErrorIs(t, manager.Add("job", "not a cron spec", func() {}), types.ErrCronExpressionInvalid)
}

func TestCronAddDuplicate(t *testing.T) {
	manager := newTestCron(t)

	require.NoError(t, manager.Add("sweep", "* * * * * *", func() {}))
	require.ErrorIs(t, manager.Add("sweep", "* * * * * *", func() {}), types.ErrCronJobExists)
}

func TestCronRemove(t *testing.T) {
	manager := newTestCron(t)

	require.NoError(t, manager.Add("sweep", "* * * * * *", func() {}))
	require.NoError(t, manager.Remove("sweep"))
	require.Error(t, manager.Remove("sweep"))

	// The slot is free again after removal.
	require.NoError(t, manager.Add("sweep", "* * * * * *", func() {}))
}

func TestCronRunsScheduledJob(t *testing.T) {
	manager := newTestCron(t)

	var runs int64
	require.NoError(t, manager.Add("tick", "* * * * * *", func() {
		atomic.AddInt64(&runs, 1)
	}))

	require.NoError(t, manager.Start())
	require.True(t, manager.IsRunning())

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, manager.Stop())
	require.False(t, manager.IsRunning())
}

func TestCronLifecycle(t *testing.T) {
	manager := newTestCron(t)

	require.NoError(t, manager.Start())
	require.ErrorIs(t, manager.Start(), types.ErrAlreadyRunning)
	require.NoError(t, manager.Stop())
	require.ErrorIs(t, manager.Stop(), types.ErrNotRunning)
}
