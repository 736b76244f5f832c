package storage

import (
	"context"
	"fmt"
)

// migrate applies every statement newer than the stored user_version.
func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return fmt.Errorf("record schema version %d: %w", i+1, err)
		}
		db.logger.Debug("migration applied", "version", i+1)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS route_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	// seq is the position in the direction of travel
	`CREATE TABLE IF NOT EXISTS stops (
		seq         INTEGER PRIMARY KEY,
		stop_id     INTEGER NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		tag         TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		display_x   REAL NOT NULL DEFAULT 0,
		display_y   REAL NOT NULL DEFAULT 0,
		lat         REAL NOT NULL,
		lng         REAL NOT NULL
	)`,
}
