// Package ledger provides the durable record of processed dedup keys. A key's
// presence means "do not refetch"; entries are never updated or deleted by the
// program itself. Deleting the database file resets all history.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tgrab/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_links (
    key        TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    first_seen DATETIME NOT NULL
);
`

// Store implements the dedup ledger using SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a new ledger store, initializing the schema if needed.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.ErrorTypeLedger, "creating ledger directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeLedger, "opening ledger: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.New(errors.ErrorTypeLedger, "initializing ledger schema: %v", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether key has already been processed.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_links WHERE key = ? LIMIT 1`, key,
	)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.New(errors.ErrorTypeLedger, "reading ledger: %v", err)
	}
	return true, nil
}

// Record marks key as processed. Inserting an existing key is a no-op, so
// Record is safe to call from racing workers and across re-runs.
func (s *Store) Record(ctx context.Context, key, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_links (key, kind, first_seen) VALUES (?, ?, ?)`,
		key, kind, time.Now(),
	)
	if err != nil {
		return errors.New(errors.ErrorTypeLedger, "writing ledger: %v", err)
	}
	return nil
}

// Count returns the number of recorded keys.
func (s *Store) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_links`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, errors.New(errors.ErrorTypeLedger, "counting ledger entries: %v", err)
	}
	return n, nil
}
