package app

import (
	"context"
	"time"

	"mealtrack/internal/domain"
)

// HistoryService encapsulates calendar/chart data retrieval use cases.
type HistoryService struct {
	meals   DailyTotaler
	targets TargetCalculator
	now     func() time.Time
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(meals DailyTotaler, targets TargetCalculator) *HistoryService {
	return &HistoryService{meals: meals, targets: targets, now: time.Now}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *HistoryService) WithClock(now func() time.Time) *HistoryService {
	c := *s
	c.now = now
	return &c
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day      string  `json:"day"`
	Calories float64 `json:"calories"`
	Target   int     `json:"target"`
}

// GetDaily returns per-day calorie totals for the last days budget days,
// oldest first, each paired with the user's current target.
func (s *HistoryService) GetDaily(ctx context.Context, userKey string, days int) ([]DayPoint, error) {
	if days <= 0 {
		return nil, domain.InvalidInputf("days must be > 0")
	}
	if days > 366 {
		days = 366
	}

	target, err := s.targets.Target(ctx, userKey)
	if err != nil {
		return nil, err
	}

	today := s.now().In(domain.BudgetZone)
	points := make([]DayPoint, 0, days)

	for i := days - 1; i >= 0; i-- {
		dayStr := today.AddDate(0, 0, -i).Format(domain.DayLayout)

		total, err := s.meals.Query(ctx, userKey, dayStr)
		if err != nil {
			return nil, err
		}

		p := DayPoint{Day: dayStr, Target: target}
		if total != nil {
			p.Calories = total.TotalCalories
		}
		points = append(points, p)
	}
	return points, nil
}
