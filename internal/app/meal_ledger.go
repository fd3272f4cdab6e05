package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
	"mealtrack/internal/metrics"
)

// MealLedger records committed meals and aggregates their calories.
type MealLedger struct {
	repo    domain.MealRepository
	locks   *partitionLocks
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewMealLedger creates a MealLedger backed by the given repository.
func NewMealLedger(repo domain.MealRepository, log *zap.Logger, m *metrics.Metrics) *MealLedger {
	return &MealLedger{
		repo:    repo,
		locks:   newPartitionLocks(),
		now:     time.Now,
		log:     logging.OrNop(log),
		metrics: m,
	}
}

// Commit stores one entry per food id for the (user, day, meal type)
// partition as a single unit and returns the partition's new calorie total.
// Repeated food ids, in this call or across calls, count as extra servings.
func (l *MealLedger) Commit(ctx context.Context, userKey, day string, mealType domain.MealType, foodIDs []string) (*domain.MealCommitResult, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, domain.InvalidInputf("user key is required")
	}
	day, err := domain.ParseDay(day)
	if err != nil {
		return nil, err
	}
	mealType, err = domain.ParseMealType(string(mealType))
	if err != nil {
		return nil, err
	}
	if len(foodIDs) == 0 {
		return nil, domain.InvalidInputf("at least one food id is required")
	}

	now := l.now().UTC()
	entries := make([]domain.MealEntry, 0, len(foodIDs))
	for _, id := range foodIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.InvalidInputf("food id must not be empty")
		}
		entries = append(entries, domain.MealEntry{
			UserKey:   userKey,
			Day:       day,
			MealType:  mealType,
			FoodID:    id,
			CreatedAt: now,
		})
	}

	unlock := l.locks.lock(partitionKey(userKey, day, mealType))
	defer unlock()

	if err := l.repo.AddMealEntries(ctx, entries); err != nil {
		l.metrics.ObserveCommit(0, err)
		l.log.Error("commit meal",
			zap.String("user", userKey), zap.String("day", day),
			zap.String("meal_type", string(mealType)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)
	}
	l.metrics.ObserveCommit(len(entries), nil)

	lines, err := l.repo.MealLinesForDay(ctx, userKey, day, mealType)
	if err != nil && ctx.Err() == nil {
		l.log.Warn("read meal after commit, retrying",
			zap.String("user", userKey), zap.String("day", day), zap.Error(err))
		lines, err = l.repo.MealLinesForDay(ctx, userKey, day, mealType)
	}
	if err != nil {
		l.log.Error("read meal after commit",
			zap.String("user", userKey), zap.String("day", day),
			zap.String("meal_type", string(mealType)), zap.Int("stored", len(entries)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrTotalUnavailable, err)
	}
	total, unmatched := domain.Summarize(lines)
	if len(unmatched) > 0 {
		l.log.Warn("meal references unknown foods",
			zap.String("user", userKey), zap.String("day", day), zap.Strings("food_ids", unmatched))
	}
	return &domain.MealCommitResult{
		InsertedCount: len(entries),
		TotalCalories: total,
		Unmatched:     unmatched,
	}, nil
}

// Query returns every meal line of the day with the summed calories, or nil
// when the user logged nothing that day.
func (l *MealLedger) Query(ctx context.Context, userKey, day string) (*domain.DailyTotal, error) {
	day, err := domain.ParseDay(day)
	if err != nil {
		return nil, err
	}
	lines, err := l.repo.MealLinesForDay(ctx, userKey, day, "")
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	total, unmatched := domain.Summarize(lines)
	return &domain.DailyTotal{
		UserKey:       userKey,
		Day:           day,
		TotalCalories: total,
		Lines:         lines,
		Unmatched:     unmatched,
	}, nil
}

func partitionKey(userKey, day string, mealType domain.MealType) string {
	return userKey + "\x00" + day + "\x00" + string(mealType)
}

// partitionLocks hands out one mutex per key and forgets keys nobody holds.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[string]*refMutex)}
}

func (p *partitionLocks) lock(key string) (unlock func()) {
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = &refMutex{}
		p.locks[key] = m
	}
	m.refs++
	p.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		p.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
