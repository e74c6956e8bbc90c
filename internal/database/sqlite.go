package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors migrations/001_create_records.sql. Records are returned in
// rowid order, which an UPDATE does not change.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
    family     TEXT    NOT NULL,
    id         INTEGER NOT NULL,
    payload    TEXT    NOT NULL,
    created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    updated_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    PRIMARY KEY (family, id)
);

CREATE TABLE IF NOT EXISTS record_sequences (
    family  TEXT    PRIMARY KEY,
    last_id INTEGER NOT NULL
);`

// OpenSQLite opens (creating if needed) the SQLite database at path and makes sure
// the records table exists.
//
// The pool is limited to a single connection: SQLite allows one writer at a time
// and the store relies on that to hand out identifiers without races.
func OpenSQLite(ctx context.Context, path string, logger *zerolog.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")

	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("opened sqlite database")
	return db, nil
}
