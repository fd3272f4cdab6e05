package app

import (
	"context"
	"fmt"

	"mealtrack/internal/domain"
)

// BudgetService derives daily calorie targets from biometric profiles.
type BudgetService struct {
	profiles domain.ProfileRepository
}

// NewBudgetService creates a BudgetService backed by the given repository.
func NewBudgetService(profiles domain.ProfileRepository) *BudgetService {
	return &BudgetService{profiles: profiles}
}

// Target returns the daily calorie target of the user.
func (s *BudgetService) Target(ctx context.Context, userKey string) (int, error) {
	p, err := s.profiles.GetProfile(ctx, userKey)
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userKey)
	}
	return domain.TargetCalories(p.HeightCm, p.Gender)
}
