// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mealtrack/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists indicates that the username is already taken.
	ErrUserExists = errors.New("user already exists")
)

const sessionTTL = 24 * time.Hour

// AuthService handles authentication and session management.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	now      func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		now:      time.Now,
	}
}

// Registration holds the fields submitted when creating an account.
type Registration struct {
	Username string
	Password string
	Name     string
	HeightCm float64
	WeightKg float64
	Gender   string
}

// Register creates an account with its biometric profile.
func (s *AuthService) Register(ctx context.Context, r Registration) (*domain.User, error) {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, domain.InvalidInputf("username is required")
	}
	if len(r.Password) < 4 {
		return nil, domain.InvalidInputf("password must be at least 4 characters")
	}
	profile, err := ValidateProfile(username, r.HeightCm, r.WeightKg, r.Gender)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, domain.NewUser{
		Username:     username,
		Name:         strings.TrimSpace(r.Name),
		PasswordHash: string(hash),
		Profile:      profile,
	})
}

// Login authenticates a user and creates a session.
func (s *AuthService) Login(ctx context.Context, username, password, userAgent, ip string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil || user.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.startSession(ctx, user.ID, userAgent, ip)
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession checks if a session token is valid and matches the user agent.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// ValidateForwardAuth resolves the user named by a trusted reverse proxy
// header, provisioning an account without password on first sight.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, errors.New("no remote user header")
	}
	return s.ensureUser(ctx, remoteUser)
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
func (s *AuthService) LoginWithUser(ctx context.Context, username, userAgent, ip string) (string, error) {
	user, err := s.ensureUser(ctx, username)
	if err != nil {
		return "", err
	}
	return s.startSession(ctx, user.ID, userAgent, ip)
}

// PurgeExpired removes sessions past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) ensureUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user, err = s.users.Create(ctx, domain.NewUser{Username: username, Name: username})
	if err != nil {
		// Lost a race with a concurrent first login.
		if again, gerr := s.users.GetByUsername(ctx, username); gerr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, userID int64, userAgent, ip string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, userID, token, userAgent, ip, s.now().Add(sessionTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
