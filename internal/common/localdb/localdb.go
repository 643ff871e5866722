// Package localdb owns the per-device SQLite database: the durable tier
// that keeps optimistic patches and manual rankings across reloads.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS optimistic_patches (
    order_id        TEXT PRIMARY KEY,
    expected_status TEXT NOT NULL,
    milestone       TEXT NOT NULL DEFAULT '',
    milestone_at_ms INTEGER NOT NULL DEFAULT 0,
    ts              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS manual_ranks (
    user_id       TEXT NOT NULL,
    truck_id      TEXT NOT NULL,
    group_key     TEXT NOT NULL,
    ids           TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (user_id, truck_id, group_key)
);
`

// Open connects to (or creates) the device database and applies the
// schema idempotently.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
