package history

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-cache/types"
)

func snapshotAt(id int, bytes int64) types.Snapshot {
	return types.Snapshot{
		ID:         strconv.Itoa(id),
		Timestamp:  time.Now(),
		TotalBytes: bytes,
		Counters:   types.CacheCounters{Sweeps: uint64(id)},
	}
}

func TestMemoryJournalAppendList(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, journal.Append(ctx, snapshotAt(i, int64(i*100))))
	}

	snapshots, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	require.Equal(t, "1", snapshots[0].ID)
	require.Equal(t, "3", snapshots[2].ID)
	require.Equal(t, uint64(2), snapshots[1].Counters.Sweeps)
}

func TestMemoryJournalListReturnsCopy(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	require.NoError(t, journal.Append(ctx, snapshotAt(1, 100)))

	first, err := journal.List(ctx)
	require.NoError(t, err)

	first[0].TotalBytes = 999

	second, err := journal.List(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100), second[0].TotalBytes)
}

func TestMemoryJournalClosed(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	require.NoError(t, journal.Append(ctx, snapshotAt(1, 100)))
	require.NoError(t, journal.Close())

	require.ErrorIs(t, journal.Append(ctx, snapshotAt(2, 200)), types.ErrHistoryClosed)

	_, err := journal.List(ctx)
	require.ErrorIs(t, err, types.ErrHistoryClosed)
}

func TestNewJournalFactory(t *testing.T) {
	journal, err := NewJournal(context.Background(), nil, nil)
	require.NoError(t, err)
	require.IsType(t, &MemoryJournal{}, journal)

	journal, err = NewJournal(context.Background(), nil, &types.HistoryConfig{Type: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryJournal{}, journal)

	_, err = NewJournal(context.Background(), nil, &types.HistoryConfig{Type: "cassandra"})
	require.ErrorIs(t, err, types.ErrHistoryTypeUnknown)
}
