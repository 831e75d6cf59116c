package history

import (
	"context"

	"github.com/saiset-co/sai-cache/types"
)

var customJournalCreators = make(map[string]types.SnapshotJournalCreator)

func RegisterJournal(journalName string, creator types.SnapshotJournalCreator) {
	customJournalCreators[journalName] = creator
}

// NewJournal builds the snapshot journal selected by the history config.
// A nil or empty config falls back to the in-memory journal.
func NewJournal(ctx context.Context, logger types.Logger, config *types.HistoryConfig) (types.SnapshotJournal, error) {
	journalName := "memory"
	if config != nil && config.Type != "" {
		journalName = config.Type
	}

	switch journalName {
	case "memory":
		return NewMemoryJournal(), nil
	case "sqlite":
		return NewSqliteJournal(ctx, logger, config)
	default:
		if creator, exists := customJournalCreators[journalName]; exists {
			return creator(config.Config)
		}
		return nil, types.Errorf(types.ErrHistoryTypeUnknown, "type: %s", journalName)
	}
}
