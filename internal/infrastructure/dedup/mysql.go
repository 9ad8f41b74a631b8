package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS seen_events (
	identity   VARCHAR(255) PRIMARY KEY,
	first_seen BIGINT NOT NULL,
	INDEX idx_seen_events_first_seen (first_seen)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

// MySQLConfig holds the connection settings for the shared dedup store.
type MySQLConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// MySQLStore is a dedup store backed by a shared MySQL database.
//
// This is the answer to horizontal scaling: with at-least-once delivery
// the platform may hand the same event to different instances, so a
// purely in-process window cannot be globally correct. A shared store
// makes INSERT IGNORE the cross-instance first-seen-wins step.
type MySQLStore struct {
	db     *sql.DB
	window time.Duration
}

// NewMySQLStore connects to MySQL and ensures the dedup table exists.
func NewMySQLStore(cfg MySQLConfig, window time.Duration) (*MySQLStore, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = 5 * time.Second

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(3 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(mysqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &MySQLStore{db: db, window: window}, nil
}

// Seen implements Store. INSERT IGNORE is atomic across instances;
// RowsAffected==0 means another check (possibly on another instance)
// recorded the identity first.
func (s *MySQLStore) Seen(ctx context.Context, identity string) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.window).Unix()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_events WHERE first_seen < ?`, cutoff); err != nil {
		return false, fmt.Errorf("purging expired identities: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO seen_events (identity, first_seen) VALUES (?, ?)`,
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
func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name implements Store.
func (s *MySQLStore) Name() string {
	return "mysql"
}

// Close implements Store.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
