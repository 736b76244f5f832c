package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const openTimeout = 5 * time.Second

// DB is the SQLite store for route topology.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Open opens the route database at path, creating it if needed, and brings
// its schema up to date.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	sqlDB, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The route is written once at import; one connection keeps writers serialized.
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("route database opened", "path", path, "schema", len(migrations))
	return db, nil
}
