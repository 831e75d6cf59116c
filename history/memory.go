package history

import (
	"context"
	"sync"

	"github.com/saiset-co/sai-cache/types"
)

// MemoryJournal is the default snapshot store: append-only and unbounded
// for the lifetime of the process. The missing cap is deliberate — the
// engine never prunes sweep history, so a long-lived process that sweeps
// frequently should either bound memory externally or use the sqlite
// journal.
type MemoryJournal struct {
	mu        sync.RWMutex
	snapshots []types.Snapshot
	closed    bool
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		snapshots: make([]types.Snapshot, 0, 16),
	}
}

func (j *MemoryJournal) Append(_ context.Context, snapshot types.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return types.ErrHistoryClosed
	}

	j.snapshots = append(j.snapshots, snapshot)
	return nil
}

func (j *MemoryJournal) List(_ context.Context) ([]types.Snapshot, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, types.ErrHistoryClosed
	}

	result := make([]types.Snapshot, len(j.snapshots))
	copy(result, j.snapshots)
	return result, nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	j.snapshots = nil
	return nil
}
