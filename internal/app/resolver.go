package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
	"mealtrack/internal/metrics"
)

const defaultResolveConcurrency = 8

// Resolver maps detection labels to catalog records.
type Resolver struct {
	catalog     domain.CatalogRepository
	concurrency int
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// NewResolver creates a Resolver issuing at most concurrency catalog lookups
// at a time. A non-positive concurrency selects the default.
func NewResolver(catalog domain.CatalogRepository, concurrency int, log *zap.Logger, m *metrics.Metrics) *Resolver {
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}
	return &Resolver{catalog: catalog, concurrency: concurrency, log: logging.OrNop(log), metrics: m}
}

// Resolve looks up every label by English name. The result has one slot per
// label in input order; a slot is nil when nothing matched. Only a catalog
// failure fails the whole batch.
func (r *Resolver) Resolve(ctx context.Context, labels []string) ([]*domain.ResolvedFoodInfo, error) {
	out := make([]*domain.ResolvedFoodInfo, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, label := range labels {
		g.Go(func() error {
			rec, err := r.catalog.GetFoodByEnglishName(gctx, label)
			if err != nil {
				return fmt.Errorf("%w: lookup %q: %w", domain.ErrResolverUnavailable, label, err)
			}
			r.metrics.ObserveResolved(rec != nil)
			if rec != nil {
				out[i] = rec.Resolved()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.log.Warn("resolve labels", zap.Strings("labels", labels), zap.Error(err))
		return nil, err
	}
	return out, nil
}
