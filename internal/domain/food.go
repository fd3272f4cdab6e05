package domain

import "context"

// FoodRecord is a nutrition catalog entry. Calories are per Quantity.
type FoodRecord struct {
	Name        string  `json:"name"`
	EnglishName string  `json:"englishName,omitempty"`
	Calories    float64 `json:"calories"`
	Category    string  `json:"category"`
	Quantity    string  `json:"quantity"`
}

// Validate checks the catalog invariants.
func (f FoodRecord) Validate() error {
	if f.Name == "" {
		return InvalidInputf("food name is required")
	}
	if f.Calories < 0 {
		return InvalidInputf("food %q: calories must be >= 0", f.Name)
	}
	return nil
}

// ResolvedFoodInfo is the slice of a FoodRecord returned for a detection.
type ResolvedFoodInfo struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Quantity string  `json:"quantity"`
}

// Resolved projects f into the shape returned to clients after a scan.
func (f FoodRecord) Resolved() *ResolvedFoodInfo {
	return &ResolvedFoodInfo{Name: f.Name, Calories: f.Calories, Quantity: f.Quantity}
}

// CatalogRepository is the port for the nutrition catalog.
//
// Lookups return (nil, nil) when no record matches.
type CatalogRepository interface {
	UpsertFoods(ctx context.Context, foods []FoodRecord) error
	GetFoodByEnglishName(ctx context.Context, englishName string) (*FoodRecord, error)
	GetFoodByName(ctx context.Context, name string) (*FoodRecord, error)
	// ListFoodsBelowCalories returns records with calories strictly below
	// threshold, ordered by calories descending then name.
	ListFoodsBelowCalories(ctx context.Context, threshold float64) ([]FoodRecord, error)
}
