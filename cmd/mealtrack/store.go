package main

import (
	"fmt"
	"io"

	"mealtrack/internal/adapter/memory"
	"mealtrack/internal/adapter/postgres"
	"mealtrack/internal/adapter/sqlite"
	"mealtrack/internal/config"
	"mealtrack/internal/domain"
)

// repository is everything the services need from one backend.
type repository interface {
	domain.CatalogRepository
	domain.MealRepository
	domain.ProfileRepository
	domain.UserRepository
}

type store struct {
	repo     repository
	sessions domain.SessionRepository
	closer   io.Closer
}

func (s *store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func openStore(cfg config.StoreConfig) (*store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &store{repo: db, sessions: postgres.NewSessionRepo(db), closer: db}, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &store{repo: db, sessions: sqlite.NewSessionRepo(db), closer: db}, nil
	case "memory":
		db := memory.New()
		return &store{repo: db, sessions: db.NewSessionRepo()}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
