// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"mealtrack/internal/domain"
)

var (
	_ domain.CatalogRepository = (*DB)(nil)
	_ domain.MealRepository    = (*DB)(nil)
	_ domain.ProfileRepository = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

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

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS food (name TEXT PRIMARY KEY, english_name TEXT, calories DOUBLE PRECISION NOT NULL CHECK(calories >= 0), category TEXT NOT NULL DEFAULT '', quantity TEXT NOT NULL DEFAULT '');",
		"CREATE INDEX IF NOT EXISTS idx_food_english_name ON food(english_name);",
		"CREATE INDEX IF NOT EXISTS idx_food_calories ON food(calories);",
		"CREATE TABLE IF NOT EXISTS meal_record (id BIGSERIAL PRIMARY KEY, user_key TEXT NOT NULL, day DATE NOT NULL, meal_type TEXT NOT NULL CHECK(meal_type IN ('breakfast','lunch','dinner','snack')), food_id TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_meal_record_user_day ON meal_record(user_key, day, meal_type);",
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL, name TEXT NOT NULL DEFAULT '', password_hash TEXT NOT NULL DEFAULT '', height_cm DOUBLE PRECISION NOT NULL DEFAULT 0, weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0, gender TEXT NOT NULL DEFAULT '', created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', ip TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
