package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS seen_events (
	identity   TEXT PRIMARY KEY,
	first_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_events_first_seen ON seen_events(first_seen);
`

// SQLiteStore is a dedup store backed by a local SQLite database. The
// window survives process restarts, which matters because the platform
// redelivers unacknowledged events across our restarts too.
type SQLiteStore struct {
	db     *sql.DB
	window time.Duration
}

// NewSQLiteStore opens (or creates) the SQLite dedup database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string, window time.Duration) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single connection for writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, window: window}, nil
}

// Seen implements Store. Expired rows are purged lazily before the
// atomic insert; ON CONFLICT DO NOTHING makes the check-and-record a
// single step, so RowsAffected==0 means the identity was already known.
func (s *SQLiteStore) Seen(ctx context.Context, identity string) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.window).Unix()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_events WHERE first_seen < ?`, cutoff); err != nil {
		return false, fmt.Errorf("purging expired identities: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_events (identity, first_seen) VALUES (?, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		identity, now.Unix())
	if err != nil {
		return false, fmt.Errorf("recording identity: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}

	return inserted == 0, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name implements Store.
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
