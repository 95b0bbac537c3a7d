package history

import (
	"context"
	"fmt"
)

// migrations are applied in order; the schema version is the number of
// migrations applied, tracked in PRAGMA user_version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS dispatches (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        uri TEXT NOT NULL,
        title TEXT NOT NULL DEFAULT '',
        mime TEXT NOT NULL DEFAULT '',
        handler TEXT NOT NULL DEFAULT '',
        file_name TEXT NOT NULL DEFAULT '',
        dispatched_at TEXT NOT NULL
    )`,
	`ALTER TABLE dispatches ADD COLUMN queued_at TEXT NOT NULL DEFAULT ''`,
	`CREATE INDEX IF NOT EXISTS idx_dispatches_uri ON dispatches (uri)`,
}

func (j *Journal) migrate(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("history db schema version %d is newer than supported %d", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	if version != len(migrations) {
		// PRAGMA does not take bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
