package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Dialect selects the SQL driver and schema flavour
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// DB is a database connection together with its dialect
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Open connects to the database, prepares the connection pool and creates the schema
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	switch dialect {
	case SQLite, Postgres:
	default:
		return nil, errors.Errorf("unsupported database type %q", dialect)
	}

	if dialect == SQLite {
		if err := ensureDataDir(dsn); err != nil {
			return nil, err
		}
	}

	conn, err := sqlx.ConnectContext(ctx, dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if dialect == SQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		conn.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		conn.SetMaxIdleConns(1)
	}

	db := &DB{DB: conn, Dialect: dialect}
	if err := db.initializeSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// ensureDataDir creates the directory of a file-backed SQLite database
func ensureDataDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create data directory %s", dir)
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func (db *DB) initializeSchema(ctx context.Context) error {
	timestamp, float := "TIMESTAMP", "REAL"
	if db.Dialect == Postgres {
		timestamp, float = "TIMESTAMPTZ", "DOUBLE PRECISION"
	}

	statements := []struct {
		name  string
		query string
	}{
		{"review_items", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS review_items (
				item_id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				item_kind TEXT NOT NULL DEFAULT 'flashcard',
				repetition_count INTEGER NOT NULL DEFAULT 0 CHECK (repetition_count >= 0),
				easiness_factor %[2]s NOT NULL DEFAULT 2.5 CHECK (easiness_factor >= 1.3),
				interval_days INTEGER NOT NULL DEFAULT 0 CHECK (interval_days >= 0),
				next_review_date %[1]s NOT NULL,
				last_reviewed_at %[1]s,
				created_at %[1]s NOT NULL,
				updated_at %[1]s NOT NULL
			)`, timestamp, float)},
		{"review_items owner index", `
			CREATE INDEX IF NOT EXISTS idx_review_items_owner ON review_items (owner_id)`},
		{"practice_sessions", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS practice_sessions (
				session_id TEXT PRIMARY KEY,
				session_code TEXT NOT NULL,
				host_user_id TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				max_participants INTEGER NOT NULL CHECK (max_participants > 0),
				created_at %[1]s NOT NULL,
				ended_at %[1]s
			)`, timestamp)},
		// Код уникален только среди активных сессий
		{"practice_sessions active code index", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_practice_sessions_active_code
			ON practice_sessions (session_code) WHERE is_active = TRUE`},
		{"participants", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS participants (
				participant_id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES practice_sessions (session_id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				display_name TEXT NOT NULL,
				score INTEGER NOT NULL DEFAULT 0,
				joined_at %[1]s NOT NULL,
				last_active_at %[1]s NOT NULL,
				UNIQUE (session_id, user_id)
			)`, timestamp)},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			return errors.Wrapf(err, "failed to create %s", stmt.name)
		}
	}
	return nil
}
