package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"arcticbus/internal/route"
)

// ErrNoRoute is returned when the stops table is empty.
var ErrNoRoute = errors.New("no route stored")

// GetMetadata retrieves a value from the route_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM route_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// HasRoute reports whether any stops have been imported.
func (db *DB) HasRoute(ctx context.Context) bool {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// ReplaceRoute swaps the stored route for t in a single transaction.
func (db *DB) ReplaceRoute(ctx context.Context, t *route.Topology) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stops`); err != nil {
		return fmt.Errorf("clear stops: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stops (seq, stop_id, name, tag, description, display_x, display_y, lat, lng)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range t.Stops() {
		if _, err := stmt.ExecContext(ctx, i, s.ID, s.Name, s.Tag, s.Description, s.X, s.Y, s.Lat, s.Lng); err != nil {
			return fmt.Errorf("insert stop %d: %w", s.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO route_metadata (key, value) VALUES ('name', ?)`, t.Name()); err != nil {
		return fmt.Errorf("store route name: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.logger.Info("route imported", "name", t.Name(), "stops", t.Count())
	return nil
}

// LoadRoute reads the stored stops in travel order.
func (db *DB) LoadRoute(ctx context.Context) (*route.Topology, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stop_id, name, tag, description, display_x, display_y, lat, lng
		FROM stops ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []route.Stop
	for rows.Next() {
		var s route.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Tag, &s.Description, &s.X, &s.Y, &s.Lat, &s.Lng); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, ErrNoRoute
	}

	name, err := db.GetMetadata(ctx, "name")
	if err != nil {
		return nil, fmt.Errorf("route name: %w", err)
	}
	return route.New(name, stops)
}
