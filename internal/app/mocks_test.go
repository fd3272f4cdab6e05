package app_test

import (
	"context"
	"sync"

	"mealtrack/internal/domain"
)

type mockCatalogRepo struct {
	upsertFn        func(ctx context.Context, foods []domain.FoodRecord) error
	byEnglishFn     func(ctx context.Context, englishName string) (*domain.FoodRecord, error)
	byNameFn        func(ctx context.Context, name string) (*domain.FoodRecord, error)
	belowCaloriesFn func(ctx context.Context, threshold float64) ([]domain.FoodRecord, error)
}

func (m *mockCatalogRepo) UpsertFoods(ctx context.Context, foods []domain.FoodRecord) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, foods)
	}
	return nil
}

func (m *mockCatalogRepo) GetFoodByEnglishName(ctx context.Context, englishName string) (*domain.FoodRecord, error) {
	if m.byEnglishFn != nil {
		return m.byEnglishFn(ctx, englishName)
	}
	return nil, nil
}

func (m *mockCatalogRepo) GetFoodByName(ctx context.Context, name string) (*domain.FoodRecord, error) {
	if m.byNameFn != nil {
		return m.byNameFn(ctx, name)
	}
	return nil, nil
}

func (m *mockCatalogRepo) ListFoodsBelowCalories(ctx context.Context, threshold float64) ([]domain.FoodRecord, error) {
	if m.belowCaloriesFn != nil {
		return m.belowCaloriesFn(ctx, threshold)
	}
	return nil, nil
}

type mockProfileRepo struct {
	getFn    func(ctx context.Context, userKey string) (*domain.BiometricProfile, error)
	updateFn func(ctx context.Context, p domain.BiometricProfile) error
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userKey string) (*domain.BiometricProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userKey)
	}
	return nil, nil
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, p domain.BiometricProfile) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}

type mockDailyTotaler struct {
	queryFn func(ctx context.Context, userKey, day string) (*domain.DailyTotal, error)
}

func (m *mockDailyTotaler) Query(ctx context.Context, userKey, day string) (*domain.DailyTotal, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, userKey, day)
	}
	return nil, nil
}

type mockTargetCalculator struct {
	targetFn func(ctx context.Context, userKey string) (int, error)
}

func (m *mockTargetCalculator) Target(ctx context.Context, userKey string) (int, error) {
	if m.targetFn != nil {
		return m.targetFn(ctx, userKey)
	}
	return 0, nil
}

type mockDetector struct {
	detectFn func(ctx context.Context, imagePath string) ([]domain.Detection, error)
}

func (m *mockDetector) Detect(ctx context.Context, imagePath string) ([]domain.Detection, error) {
	if m.detectFn != nil {
		return m.detectFn(ctx, imagePath)
	}
	return nil, nil
}

// fakeMealRepo keeps entries in memory and joins them against foods. addFn,
// when set, runs before the append and can fail the whole batch.
type fakeMealRepo struct {
	mu      sync.Mutex
	foods   map[string]domain.FoodRecord
	entries []domain.MealEntry
	addFn   func(ctx context.Context, entries []domain.MealEntry) error
	linesFn func(ctx context.Context) error
}

func newFakeMealRepo(foods ...domain.FoodRecord) *fakeMealRepo {
	r := &fakeMealRepo{foods: make(map[string]domain.FoodRecord)}
	for _, f := range foods {
		r.foods[f.Name] = f
	}
	return r
}

func (r *fakeMealRepo) AddMealEntries(ctx context.Context, entries []domain.MealEntry) error {
	if r.addFn != nil {
		if err := r.addFn(ctx, entries); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		e.ID = int64(len(r.entries) + 1)
		r.entries = append(r.entries, e)
	}
	return nil
}

func (r *fakeMealRepo) MealLinesForDay(ctx context.Context, userKey, day string, mealType domain.MealType) ([]domain.MealLine, error) {
	if r.linesFn != nil {
		if err := r.linesFn(ctx); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var lines []domain.MealLine
	for _, e := range r.entries {
		if e.UserKey != userKey || e.Day != day || (mealType != "" && e.MealType != mealType) {
			continue
		}
		line := domain.MealLine{Entry: e}
		if f, ok := r.foods[e.FoodID]; ok {
			line.Food = &f
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *fakeMealRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
