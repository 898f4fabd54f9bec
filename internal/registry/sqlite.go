package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS counter (
    id    INTEGER PRIMARY KEY CHECK (id = 1),
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
    identifier TEXT PRIMARY KEY,
    major      INTEGER NOT NULL,
    minor      INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements Store on a local SQLite database in WAL mode. It is
// the backend to pick when pipeline runs cannot be serialized externally:
// both tables are updated with single-statement upserts, so concurrent runs
// cannot interleave a read-modify-write the way the flat files can.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode and a busy timeout, and creates the schema if it does not exist.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}

	// Limit to one connection. SQLite only supports a single writer; one
	// connection avoids SQLITE_BUSY contention between pooled connections
	// that each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Counter(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry: read counter: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) SetCounter(ctx context.Context, n int) error {
	const q = `
		INSERT INTO counter (id, value) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, n); err != nil {
		return fmt.Errorf("registry: set counter %d: %w", n, err)
	}
	return nil
}

func (s *SQLiteStore) Version(ctx context.Context, id string) (Version, bool, error) {
	var v Version
	err := s.db.QueryRowContext(ctx,
		"SELECT major, minor FROM versions WHERE identifier = ?", id).Scan(&v.Major, &v.Minor)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, fmt.Errorf("registry: read version %q: %w", id, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetVersion(ctx context.Context, id string, v Version) error {
	const q = `
		INSERT INTO versions (identifier, major, minor, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(identifier) DO UPDATE SET
			major      = excluded.major,
			minor      = excluded.minor,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, id, v.Major, v.Minor); err != nil {
		return fmt.Errorf("registry: set version %q=%s: %w", id, v, err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
