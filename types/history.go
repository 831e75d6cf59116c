package types

import (
	"context"
)

// SnapshotJournal stores the historical sequence of sweep snapshots.
// The memory journal is append-only and unbounded; callers that need a
// bounded history should use the sqlite journal and prune externally.
type SnapshotJournal interface {
	Append(ctx context.Context, snapshot Snapshot) error
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}

type SnapshotJournalCreator func(config interface{}) (SnapshotJournal, error)
