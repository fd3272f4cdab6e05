// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mealtrack/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	foods    map[string]domain.FoodRecord
	meals    []domain.MealEntry
	users    []*domain.User
	sessions map[string]*domain.Session

	mealIDCounter int64
	userIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		foods:    make(map[string]domain.FoodRecord),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.CatalogRepository = (*DB)(nil)
var _ domain.MealRepository = (*DB)(nil)
var _ domain.ProfileRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- CatalogRepository ---

// UpsertFoods inserts or replaces catalog records by name. Nothing is stored
// if any record is invalid.
func (db *DB) UpsertFoods(ctx context.Context, foods []domain.FoodRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, f := range foods {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, f := range foods {
		db.foods[f.Name] = f
	}
	return nil
}

// GetFoodByEnglishName returns the first record, by name, with the given
// English name.
func (db *DB) GetFoodByEnglishName(ctx context.Context, englishName string) (*domain.FoodRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var found *domain.FoodRecord
	for _, f := range db.foods {
		if f.EnglishName == "" || f.EnglishName != englishName {
			continue
		}
		if found == nil || f.Name < found.Name {
			found = &f
		}
	}
	return found, nil
}

// GetFoodByName returns the record with the given canonical name.
func (db *DB) GetFoodByName(ctx context.Context, name string) (*domain.FoodRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if f, ok := db.foods[name]; ok {
		return &f, nil
	}
	return nil, nil
}

// ListFoodsBelowCalories lists records strictly under threshold.
func (db *DB) ListFoodsBelowCalories(ctx context.Context, threshold float64) ([]domain.FoodRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.FoodRecord
	for _, f := range db.foods {
		if f.Calories < threshold {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Calories != result[j].Calories {
			return result[i].Calories > result[j].Calories
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// --- MealRepository ---

// AddMealEntries validates every entry and then appends them all.
func (db *DB) AddMealEntries(ctx context.Context, entries []domain.MealEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, e := range entries {
		if e.UserKey == "" || e.Day == "" || e.MealType == "" || e.FoodID == "" {
			return fmt.Errorf("meal entry %d: missing field", i)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range entries {
		db.mealIDCounter++
		e.ID = db.mealIDCounter
		e.CreatedAt = e.CreatedAt.UTC()
		db.meals = append(db.meals, e)
	}
	return nil
}

// MealLinesForDay joins the user's entries for day with the catalog.
func (db *DB) MealLinesForDay(ctx context.Context, userKey, day string, mealType domain.MealType) ([]domain.MealLine, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var lines []domain.MealLine
	for _, e := range db.meals {
		if e.UserKey != userKey || e.Day != day {
			continue
		}
		if mealType != "" && e.MealType != mealType {
			continue
		}
		line := domain.MealLine{Entry: e}
		if f, ok := db.foods[e.FoodID]; ok {
			line.Food = &f
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// --- ProfileRepository ---

// GetProfile returns the biometric profile stored with the user.
func (db *DB) GetProfile(ctx context.Context, userKey string) (*domain.BiometricProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := db.userByName(userKey)
	if u == nil || u.Profile.Gender == "" {
		return nil, nil
	}
	p := u.Profile
	p.UserKey = u.Username
	return &p, nil
}

// UpdateProfile replaces the biometric profile of an existing user.
func (db *DB) UpdateProfile(ctx context.Context, p domain.BiometricProfile) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := db.userByName(p.UserKey)
	if u == nil {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, p.UserKey)
	}
	u.Profile = p
	return nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u := db.userByName(username); u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.userByName(nu.Username) != nil {
		return nil, errors.New("user already exists")
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     nu.Username,
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		Profile:      nu.Profile,
		CreatedAt:    time.Now().UTC(),
	}
	u.Profile.UserKey = nu.Username
	db.users = append(db.users, u)
	c := *u
	return &c, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// userByName expects db.mu to be held.
func (db *DB) userByName(username string) *domain.User {
	for _, u := range db.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		c := *s
		return &c, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
