package app

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"mealtrack/internal/domain"
)

// DailyTotaler returns the aggregated meals of one day, nil when empty.
type DailyTotaler interface {
	Query(ctx context.Context, userKey, day string) (*domain.DailyTotal, error)
}

// TargetCalculator returns a user's daily calorie target.
type TargetCalculator interface {
	Target(ctx context.Context, userKey string) (int, error)
}

// FoodLister lists catalog records under a calorie threshold.
type FoodLister interface {
	ListFoodsBelowCalories(ctx context.Context, threshold float64) ([]domain.FoodRecord, error)
}

// BudgetReport is the calorie budget of one user for the current budget day.
type BudgetReport struct {
	Day       string `json:"day"`
	Target    int    `json:"target"`
	Eaten     int    `json:"eaten"`
	Remaining int    `json:"remaining"`
}

// RemainingService combines logged meals with the calorie target.
type RemainingService struct {
	meals   DailyTotaler
	targets TargetCalculator
	foods   FoodLister
	now     func() time.Time
}

// NewRemainingService creates a RemainingService.
func NewRemainingService(meals DailyTotaler, targets TargetCalculator, foods FoodLister) *RemainingService {
	return &RemainingService{meals: meals, targets: targets, foods: foods, now: time.Now}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *RemainingService) WithClock(now func() time.Time) *RemainingService {
	c := *s
	c.now = now
	return &c
}

// Remaining reports calories eaten today and what is left of the target.
// Remaining is negative once the user is over budget.
func (s *RemainingService) Remaining(ctx context.Context, userKey string) (*BudgetReport, error) {
	day := domain.BudgetDay(s.now())

	var (
		total  *domain.DailyTotal
		target int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.meals.Query(gctx, userKey, day)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = s.targets.Target(gctx, userKey)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &domain.OrchestrationError{Op: "remaining calories", Cause: err}
	}

	eaten := 0
	if total != nil {
		eaten = int(math.Round(total.TotalCalories))
	}
	return &BudgetReport{
		Day:       day,
		Target:    target,
		Eaten:     eaten,
		Remaining: target - eaten,
	}, nil
}

// Recommend lists catalog records whose calories are strictly below the
// remaining budget. Nothing is recommended once the budget is used up.
func (s *RemainingService) Recommend(ctx context.Context, userKey string) ([]domain.FoodRecord, error) {
	report, err := s.Remaining(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if report.Remaining <= 0 {
		return []domain.FoodRecord{}, nil
	}
	foods, err := s.foods.ListFoodsBelowCalories(ctx, float64(report.Remaining))
	if err != nil {
		return nil, &domain.OrchestrationError{Op: "recommend foods", Cause: err}
	}
	if foods == nil {
		foods = []domain.FoodRecord{}
	}
	return foods, nil
}
