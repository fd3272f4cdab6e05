package domain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"mealtrack/internal/domain"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTargetCalories(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		gender domain.Gender
		want   int
	}{
		{"female 170", 170, domain.Female, 1821},
		{"male 170", 170, domain.Male, 1907},
		{"female 160", 160, domain.Female, 1613},
		{"male 180", 180, domain.Male, 2138},
		{"fractional height", 165.5, domain.Female, 1726},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := domain.TargetCalories(tc.height, tc.gender)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("TargetCalories(%v, %q) = %d; want %d", tc.height, tc.gender, got, tc.want)
			}
		})
	}
}

func TestTargetCalories_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		gender domain.Gender
	}{
		{"zero height", 0, domain.Female},
		{"negative height", -170, domain.Male},
		{"NaN height", math.NaN(), domain.Male},
		{"unknown gender", 170, domain.Gender("other")},
		{"empty gender", 170, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.TargetCalories(tc.height, tc.gender)
			if !errors.Is(err, domain.ErrInvalidProfile) {
				t.Fatalf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestTargetCalories_MonotonicInHeight(t *testing.T) {
	for _, g := range []domain.Gender{domain.Female, domain.Male} {
		prev := 0
		for h := 100.0; h <= 220; h++ {
			got, err := domain.TargetCalories(h, g)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got < prev {
				t.Fatalf("%s: target decreased at %vcm: %d < %d", g, h, got, prev)
			}
			again, _ := domain.TargetCalories(h, g)
			if again != got {
				t.Fatalf("%s: non-deterministic result at %vcm", g, h)
			}
			prev = got
		}
	}
}

func TestParseGender(t *testing.T) {
	if g, err := domain.ParseGender(" Female "); err != nil || g != domain.Female {
		t.Fatalf("ParseGender(Female) = %q, %v", g, err)
	}
	if _, err := domain.ParseGender("x"); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestBMI(t *testing.T) {
	bmi, err := domain.BMI(180, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(bmi, 27.778, 0.001) {
		t.Errorf("BMI(180, 90) = %v; want 27.778", bmi)
	}
	if got := domain.BMICategory(bmi); got != "overweight" {
		t.Errorf("BMICategory(%v) = %q", bmi, got)
	}
	if _, err := domain.BMI(0, 80); err == nil {
		t.Fatal("expected error for zero height")
	}
}

func TestBudgetDay(t *testing.T) {
	// 15:30 UTC is already the next day in UTC+9.
	ts := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	if got := domain.BudgetDay(ts); got != "2024-01-02" {
		t.Fatalf("BudgetDay = %s; want 2024-01-02", got)
	}
	ts = time.Date(2024, 1, 1, 14, 59, 0, 0, time.UTC)
	if got := domain.BudgetDay(ts); got != "2024-01-01" {
		t.Fatalf("BudgetDay = %s; want 2024-01-01", got)
	}
}

func TestSummarize(t *testing.T) {
	apple := &domain.FoodRecord{Name: "apple", Calories: 95}
	lines := []domain.MealLine{
		{Entry: domain.MealEntry{FoodID: "apple"}, Food: apple},
		{Entry: domain.MealEntry{FoodID: "ghost"}},
		{Entry: domain.MealEntry{FoodID: "apple"}, Food: apple},
		{Entry: domain.MealEntry{FoodID: "ghost"}},
	}
	total, unmatched := domain.Summarize(lines)
	if total != 190 {
		t.Errorf("total = %v; want 190", total)
	}
	if len(unmatched) != 1 || unmatched[0] != "ghost" {
		t.Errorf("unmatched = %v; want [ghost]", unmatched)
	}
}

func TestParseMealType(t *testing.T) {
	if mt, err := domain.ParseMealType("Lunch"); err != nil || mt != domain.Lunch {
		t.Fatalf("ParseMealType(Lunch) = %q, %v", mt, err)
	}
	if _, err := domain.ParseMealType("brunch"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
