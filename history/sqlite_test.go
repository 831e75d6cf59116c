package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

func newTestSqliteJournal(t *testing.T) *SqliteJournal {
	t.Helper()

	journal, err := NewSqliteJournal(
		context.Background(),
		logger.NewZapWrapper(zap.NewNop()),
		&types.HistoryConfig{
			Type:   "sqlite",
			Config: &SqliteConfig{Path: filepath.Join(t.TempDir(), "history.db")},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	return journal
}

func TestSqliteJournalAppendList(t *testing.T) {
	journal := newTestSqliteJournal(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Millisecond)

	for i := 1; i <= 3; i++ {
		require.NoError(t, journal.Append(ctx, types.Snapshot{
			ID:         time.Duration(i).String(),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			TotalBytes: int64(i * 100),
			Counters:   types.CacheCounters{Sweeps: uint64(i)},
		}))
	}

	snapshots, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	require.Equal(t, int64(100), snapshots[0].TotalBytes)
	require.Equal(t, int64(300), snapshots[2].TotalBytes)
	require.Equal(t, uint64(2), snapshots[1].Counters.Sweeps)
	require.Equal(t, base.Add(time.Second).UnixMilli(), snapshots[0].Timestamp.UnixMilli())
}

func TestSqliteJournalEmpty(t *testing.T) {
	journal := newTestSqliteJournal(t)

	snapshots, err := journal.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, snapshots)
}
