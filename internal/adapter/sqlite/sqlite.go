// Package sqlite implements the domain repositories on an embedded SQLite
// database file. It is the default store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"mealtrack/internal/domain"
)

var (
	_ domain.CatalogRepository = (*DB)(nil)
	_ domain.MealRepository    = (*DB)(nil)
	_ domain.ProfileRepository = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

// timeLayout is how timestamps are stored in TEXT columns. It is fixed
// width so stored values sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the database file at path and runs migrations.
// Write transactions start with BEGIN IMMEDIATE so concurrent writers queue
// on the busy timeout instead of failing on lock upgrade.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	s, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping reports whether the database is usable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS food (
			name TEXT PRIMARY KEY,
			english_name TEXT,
			calories REAL NOT NULL CHECK(calories >= 0),
			category TEXT NOT NULL DEFAULT '',
			quantity TEXT NOT NULL DEFAULT ''
		);`,
		"CREATE INDEX IF NOT EXISTS idx_food_english_name ON food(english_name);",
		"CREATE INDEX IF NOT EXISTS idx_food_calories ON food(calories);",
		`CREATE TABLE IF NOT EXISTS meal_record (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_key TEXT NOT NULL,
			day TEXT NOT NULL,
			meal_type TEXT NOT NULL CHECK(meal_type IN ('breakfast','lunch','dinner','snack')),
			food_id TEXT NOT NULL CHECK(food_id <> ''),
			created_at TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_meal_record_user_day ON meal_record(user_key, day, meal_type);",
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			height_cm REAL NOT NULL DEFAULT 0,
			weight_kg REAL NOT NULL DEFAULT 0,
			gender TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_agent TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
