package domain

import (
	"context"
	"strings"
	"time"
)

// DayLayout is the wire and storage format of a local calendar day.
const DayLayout = "2006-01-02"

// MealType names the slot a meal was eaten in.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists the accepted meal types in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// ParseMealType normalises s and rejects unknown meal types.
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MealTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", InvalidInputf("unknown meal type %q", s)
}

// ParseDay validates a YYYY-MM-DD day string.
func ParseDay(s string) (string, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", InvalidInputf("day must be YYYY-MM-DD, got %q", s)
	}
	return t.Format(DayLayout), nil
}

// MealEntry is one committed (user, day, meal type, food) association.
type MealEntry struct {
	ID        int64     `json:"id"`
	UserKey   string    `json:"userKey"`
	Day       string    `json:"day"`
	MealType  MealType  `json:"mealType"`
	FoodID    string    `json:"foodId"`
	CreatedAt time.Time `json:"createdAt"`
}

// MealLine is a meal entry joined with its catalog record. Food is nil when
// the referenced record no longer exists.
type MealLine struct {
	Entry MealEntry   `json:"entry"`
	Food  *FoodRecord `json:"food"`
}

// DailyTotal aggregates the meal lines of one user and day, optionally
// scoped to a single meal type.
type DailyTotal struct {
	UserKey       string     `json:"userKey"`
	Day           string     `json:"day"`
	MealType      MealType   `json:"mealType,omitempty"`
	TotalCalories float64    `json:"totalCalories"`
	Lines         []MealLine `json:"lines"`
	Unmatched     []string   `json:"unmatched,omitempty"`
}

// MealCommitResult is returned after a meal has been written.
type MealCommitResult struct {
	InsertedCount int      `json:"insertedCount"`
	TotalCalories float64  `json:"totalCalories"`
	Unmatched     []string `json:"unmatched,omitempty"`
}

// Summarize sums the calories of matched lines and collects the food ids of
// unmatched ones, once each, in first-seen order.
func Summarize(lines []MealLine) (total float64, unmatched []string) {
	seen := make(map[string]bool)
	for _, l := range lines {
		if l.Food == nil {
			if !seen[l.Entry.FoodID] {
				seen[l.Entry.FoodID] = true
				unmatched = append(unmatched, l.Entry.FoodID)
			}
			continue
		}
		total += l.Food.Calories
	}
	return total, unmatched
}

// MealRepository is the port for meal ledger persistence.
type MealRepository interface {
	// AddMealEntries stores all entries or none of them.
	AddMealEntries(ctx context.Context, entries []MealEntry) error
	// MealLinesForDay returns the joined rows for a user and day in insertion
	// order. An empty mealType selects every meal type.
	MealLinesForDay(ctx context.Context, userKey, day string, mealType MealType) ([]MealLine, error)
}
