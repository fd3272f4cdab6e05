package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/app"
	"mealtrack/internal/domain"
)

// 2024-05-01 23:30 UTC is already 2024-05-02 in the budget zone.
var fixedNow = time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func totalOf(cal float64) *mockDailyTotaler {
	return &mockDailyTotaler{
		queryFn: func(_ context.Context, _, _ string) (*domain.DailyTotal, error) {
			return &domain.DailyTotal{TotalCalories: cal}, nil
		},
	}
}

func targetOf(n int) *mockTargetCalculator {
	return &mockTargetCalculator{
		targetFn: func(context.Context, string) (int, error) { return n, nil },
	}
}

func TestRemaining(t *testing.T) {
	var queriedDay string
	meals := &mockDailyTotaler{
		queryFn: func(_ context.Context, userKey, day string) (*domain.DailyTotal, error) {
			queriedDay = day
			return &domain.DailyTotal{UserKey: userKey, Day: day, TotalCalories: 499.6}, nil
		},
	}
	svc := app.NewRemainingService(meals, targetOf(2000), &mockCatalogRepo{}).WithClock(clock)

	rep, err := svc.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", queriedDay)
	assert.Equal(t, app.BudgetReport{Day: "2024-05-02", Target: 2000, Eaten: 500, Remaining: 1500}, *rep)
}

func TestRemaining_NoMeals(t *testing.T) {
	svc := app.NewRemainingService(&mockDailyTotaler{}, targetOf(1821), &mockCatalogRepo{}).WithClock(clock)

	rep, err := svc.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Eaten)
	assert.Equal(t, 1821, rep.Remaining)
}

func TestRemaining_OverBudget(t *testing.T) {
	svc := app.NewRemainingService(totalOf(2500), targetOf(2000), &mockCatalogRepo{}).WithClock(clock)

	rep, err := svc.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, -500, rep.Remaining)
}

func TestRemaining_SubCallFailure(t *testing.T) {
	tests := []struct {
		name    string
		meals   *mockDailyTotaler
		targets *mockTargetCalculator
		cause   error
	}{
		{
			name:    "profile missing",
			meals:   totalOf(100),
			targets: &mockTargetCalculator{targetFn: func(context.Context, string) (int, error) { return 0, domain.ErrProfileNotFound }},
			cause:   domain.ErrProfileNotFound,
		},
		{
			name:    "ledger down",
			meals:   &mockDailyTotaler{queryFn: func(context.Context, string, string) (*domain.DailyTotal, error) { return nil, errLedgerDown }},
			targets: targetOf(2000),
			cause:   errLedgerDown,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := app.NewRemainingService(tc.meals, tc.targets, &mockCatalogRepo{}).WithClock(clock)
			_, err := svc.Remaining(context.Background(), "alice")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrOrchestration)
			assert.ErrorIs(t, err, tc.cause)

			var oe *domain.OrchestrationError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, "remaining calories", oe.Op)
		})
	}
}

var errLedgerDown = errors.New("ledger down")

func TestRecommend(t *testing.T) {
	var threshold float64
	foods := &mockCatalogRepo{
		belowCaloriesFn: func(_ context.Context, th float64) ([]domain.FoodRecord, error) {
			threshold = th
			return []domain.FoodRecord{soup, apple}, nil
		},
	}
	svc := app.NewRemainingService(totalOf(500), targetOf(2000), foods).WithClock(clock)

	got, err := svc.Recommend(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, threshold)
	assert.Equal(t, []domain.FoodRecord{soup, apple}, got)
}

func TestRecommend_BudgetExhausted(t *testing.T) {
	for _, eaten := range []float64{2000, 2500} {
		foods := &mockCatalogRepo{
			belowCaloriesFn: func(context.Context, float64) ([]domain.FoodRecord, error) {
				t.Error("catalog must not be queried")
				return nil, nil
			},
		}
		svc := app.NewRemainingService(totalOf(eaten), targetOf(2000), foods).WithClock(clock)

		got, err := svc.Recommend(context.Background(), "alice")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestRecommend_NothingFits(t *testing.T) {
	svc := app.NewRemainingService(totalOf(1990), targetOf(2000), &mockCatalogRepo{}).WithClock(clock)

	got, err := svc.Recommend(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommend_CatalogFailure(t *testing.T) {
	foods := &mockCatalogRepo{
		belowCaloriesFn: func(context.Context, float64) ([]domain.FoodRecord, error) {
			return nil, errLedgerDown
		},
	}
	svc := app.NewRemainingService(totalOf(0), targetOf(2000), foods).WithClock(clock)

	_, err := svc.Recommend(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrOrchestration)
	assert.ErrorIs(t, err, errLedgerDown)
}
