package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mealtrack/internal/domain"
)

const userColumns = "id, username, name, password_hash, height_cm, weight_kg, gender, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		gender    string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash,
		&u.Profile.HeightCm, &u.Profile.WeightKg, &gender, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	u.Profile.UserKey = u.Username
	u.Profile.Gender = domain.Gender(gender)
	return &u, nil
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	res, err := d.sql.ExecContext(ctx,
		"INSERT INTO users (username, name, password_hash, height_cm, weight_kg, gender, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		nu.Username, nu.Name, nu.PasswordHash, nu.Profile.HeightCm, nu.Profile.WeightKg, string(nu.Profile.Gender), formatTime(time.Now()))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetByID(ctx, id)
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// GetProfile returns the biometric profile stored with the user, or nil when
// the user is unknown or has not set one.
func (d *DB) GetProfile(ctx context.Context, userKey string) (*domain.BiometricProfile, error) {
	u, err := d.GetByUsername(ctx, userKey)
	if err != nil || u == nil || u.Profile.Gender == "" {
		return nil, err
	}
	return &u.Profile, nil
}

// UpdateProfile replaces the biometric profile of an existing user.
func (d *DB) UpdateProfile(ctx context.Context, p domain.BiometricProfile) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE users SET height_cm = ?, weight_kg = ?, gender = ? WHERE username = ?",
		p.HeightCm, p.WeightKg, string(p.Gender), p.UserKey)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, p.UserKey)
	}
	return nil
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, user_agent, ip, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID, token, userAgent, ip, formatTime(expiresAt), formatTime(time.Now()),
	)
	return err
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var (
		s                    domain.Session
		expiresAt, createdAt string
	)
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = ?",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", formatTime(time.Now()))
	return err
}
