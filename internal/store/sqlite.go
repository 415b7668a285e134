package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLiteStore keeps markers in a local SQLite file, the widget-host analog of
// the browser profile. Session-scoped rows are wiped on open: a new process
// is a new browsing session.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the marker database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// WAL + busy timeout to avoid "database is locked"; modernc's driver
	// takes pragmas through the _pragma DSN option.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open marker db: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`DELETE FROM markers WHERE scope = ?`, int(ScopeSession)); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: clear session markers: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS markers(
	  scope      INTEGER NOT NULL,
	  key        TEXT    NOT NULL,
	  value      TEXT    NOT NULL,
	  updated_at INTEGER NOT NULL,
	  PRIMARY KEY(scope, key)
	);
	`)
	if err != nil {
		return fmt.Errorf("store: create marker table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the marker value and whether it exists.
func (s *SQLiteStore) Get(ctx context.Context, scope Scope, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM markers WHERE scope = ? AND key = ?`, int(scope), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %s marker %q: %w", scope, key, err)
	}
	return value, true, nil
}

// Set stores a marker value, replacing any existing one.
func (s *SQLiteStore) Set(ctx context.Context, scope Scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markers(scope, key, value, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, int(scope), key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: set %s marker %q: %w", scope, key, err)
	}
	return nil
}

// Delete removes a marker.
func (s *SQLiteStore) Delete(ctx context.Context, scope Scope, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM markers WHERE scope = ? AND key = ?`, int(scope), key,
	); err != nil {
		return fmt.Errorf("store: delete %s marker %q: %w", scope, key, err)
	}
	return nil
}

var _ MarkerStore = (*SQLiteStore)(nil)
