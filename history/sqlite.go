package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

type SqliteConfig struct {
	Path string `json:"path" yaml:"path"`
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS sweep_snapshots (
	id              TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	total_bytes     INTEGER NOT NULL,
	sweeps          INTEGER NOT NULL,
	full_flushes    INTEGER NOT NULL,
	pattern_flushes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sweep_snapshots_created_at ON sweep_snapshots (created_at);
`

// SqliteJournal persists sweep snapshots so the history survives process
// restarts, unlike the in-memory journal.
type SqliteJournal struct {
	logger types.Logger
	db     *sql.DB
}

func NewSqliteJournal(ctx context.Context, logger types.Logger, config *types.HistoryConfig) (*SqliteJournal, error) {
	sqliteConfig := &SqliteConfig{
		Path: "sweep_history.db",
	}

	if config != nil && config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, sqliteConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal sqlite journal config")
		}
	}

	db, err := sql.Open("sqlite3", sqliteConfig.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open sqlite journal")
	}

	// The journal is written from a single engine; one connection avoids
	// SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "failed to create sqlite journal schema")
	}

	logger.Info("Sqlite snapshot journal initialized", zap.String("path", sqliteConfig.Path))

	return &SqliteJournal{logger: logger, db: db}, nil
}

func (j *SqliteJournal) Append(ctx context.Context, snapshot types.Snapshot) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sweep_snapshots (id, created_at, total_bytes, sweeps, full_flushes, pattern_flushes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.Timestamp.UnixMilli(),
		snapshot.TotalBytes,
		snapshot.Counters.Sweeps,
		snapshot.Counters.FullFlushes,
		snapshot.Counters.PatternFlushes,
	)
	return types.WrapError(err, "failed to append sweep snapshot")
}

func (j *SqliteJournal) List(ctx context.Context) ([]types.Snapshot, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, total_bytes, sweeps, full_flushes, pattern_flushes
		 FROM sweep_snapshots ORDER BY created_at ASC`)
	if err != nil {
		return nil, types.WrapError(err, "failed to query sweep snapshots")
	}
	defer rows.Close()

	var snapshots []types.Snapshot
	for rows.Next() {
		var snapshot types.Snapshot
		var createdAt int64

		if err := rows.Scan(
			&snapshot.ID,
			&createdAt,
			&snapshot.TotalBytes,
			&snapshot.Counters.Sweeps,
			&snapshot.Counters.FullFlushes,
			&snapshot.Counters.PatternFlushes,
		); err != nil {
			return nil, types.WrapError(err, "failed to scan sweep snapshot")
		}

		snapshot.Timestamp = time.UnixMilli(createdAt)
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, types.WrapError(err, "failed to iterate sweep snapshots")
	}

	return snapshots, nil
}

func (j *SqliteJournal) Close() error {
	return j.db.Close()
}
