// Package database provides the SQLite-backed stores the policy layer reads:
// the transition/dynamics store of historical routing outcomes and the
// archived-run store feeding history selection. The database is opened in WAL
// mode so policy readers observe consistent snapshots without ever blocking
// the dispatcher processes that append to it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with additional functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration options.
type Config struct {
	Path            string        // Database file path
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	BusyTimeout     time.Duration // SQLite busy timeout
}

// DefaultConfig returns sensible defaults for database configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// Open creates a new database connection with optimized settings.
// Enables WAL mode and sets a busy timeout for better concurrency.
func Open(path string) (*DB, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig creates a new database connection with custom configuration.
func OpenWithConfig(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: cfg.Path,
	}

	// Verify WAL mode is enabled; readers rely on snapshot isolation.
	var journalMode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}

// migrate applies the schema idempotently. The policy layer owns only the
// tables it reads; CREATE IF NOT EXISTS keeps concurrent openers safe.
func (db *DB) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL,
	job_type TEXT NOT NULL,
	feature_key TEXT NOT NULL,
	toolchain TEXT NOT NULL,
	success INTEGER NOT NULL CHECK (success IN (0, 1)),
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transitions_lookup
	ON transitions (domain, job_type, feature_key, toolchain);

CREATE TABLE IF NOT EXISTS archived_runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMP,
	domain TEXT NOT NULL,
	world_id TEXT,
	objective_id TEXT,
	job_type TEXT NOT NULL,
	outcome TEXT NOT NULL,
	strategy TEXT,
	duration_seconds REAL,
	cost REAL,
	tags TEXT,
	failing_gates TEXT,
	failure_codes TEXT
);

CREATE INDEX IF NOT EXISTS idx_archived_runs_started
	ON archived_runs (started_at, run_id);
`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Conn returns the underlying sql.DB connection for DAO use.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
