package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
)

// CatalogService loads and reads the nutrition catalog.
type CatalogService struct {
	repo domain.CatalogRepository
	log  *zap.Logger
}

// NewCatalogService creates a CatalogService backed by the given repository.
func NewCatalogService(repo domain.CatalogRepository, log *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, log: logging.OrNop(log)}
}

// seedRecord is one element of the catalog seed file.
type seedRecord struct {
	Name        string  `json:"Name"`
	EnglishName *string `json:"EnglishName"`
	Calories    float64 `json:"Calories"`
	Category    string  `json:"Category"`
	Quantity    string  `json:"Quantity"`
}

// Import reads a JSON array of catalog records and upserts them all in one
// batch. Nothing is written if any record is invalid.
func (s *CatalogService) Import(ctx context.Context, r io.Reader) (int, error) {
	var seed []seedRecord
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return 0, domain.InvalidInputf("catalog seed: %v", err)
	}

	foods := make([]domain.FoodRecord, 0, len(seed))
	for i, rec := range seed {
		f := domain.FoodRecord{
			Name:     strings.TrimSpace(rec.Name),
			Calories: rec.Calories,
			Category: rec.Category,
			Quantity: rec.Quantity,
		}
		if rec.EnglishName != nil {
			f.EnglishName = strings.TrimSpace(*rec.EnglishName)
		}
		if err := f.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		foods = append(foods, f)
	}
	if len(foods) == 0 {
		return 0, nil
	}

	if err := s.repo.UpsertFoods(ctx, foods); err != nil {
		return 0, fmt.Errorf("upsert catalog: %w", err)
	}
	s.log.Info("catalog imported", zap.Int("records", len(foods)))
	return len(foods), nil
}

// Lookup returns the record with the given canonical name.
func (s *CatalogService) Lookup(ctx context.Context, name string) (*domain.FoodRecord, error) {
	f, err := s.repo.GetFoodByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFoodNotFound, name)
	}
	return f, nil
}
