package domain

import (
	"fmt"
	"math"
	"time"
)

// BudgetZone fixes the calendar used for "today" in budget calculations to
// UTC+9, independent of the host's local time.
var BudgetZone = time.FixedZone("UTC+9", 9*60*60)

// BudgetDay returns the budget calendar day containing t.
func BudgetDay(t time.Time) string {
	return t.In(BudgetZone).Format(DayLayout)
}

// TargetCalories returns the daily calorie target for a height in
// centimetres: round(h² × k / 10000 × 30), k = 21 for female and 22 for male.
func TargetCalories(heightCm float64, gender Gender) (int, error) {
	if heightCm <= 0 || math.IsNaN(heightCm) || math.IsInf(heightCm, 0) {
		return 0, fmt.Errorf("%w: height must be > 0, got %v", ErrInvalidProfile, heightCm)
	}
	var k float64
	switch gender {
	case Female:
		k = 21
	case Male:
		k = 22
	default:
		return 0, fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, gender)
	}
	return int(math.Round(heightCm * heightCm * k / 10000 * 30)), nil
}

// BMI expects height in centimeters and weight in kilograms.
func BMI(heightCm, weightKg float64) (float64, error) {
	if heightCm <= 0 || weightKg <= 0 {
		return 0, fmt.Errorf("%w: height and weight must be positive", ErrInvalidProfile)
	}
	h := heightCm / 100.0
	return weightKg / (h * h), nil
}

// BMICategory buckets a BMI value using the WHO adult ranges.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25.0:
		return "normal"
	case bmi < 30.0:
		return "overweight"
	default:
		return "obese"
	}
}
