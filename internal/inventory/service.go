package inventory

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	ListStockLevels(ctx context.Context) ([]StockLevel, error)
}

// Service builds cached inventory reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService builds Service. A nil cache computes every report on demand.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Summary returns the inventory summary for the current cache version.
// Concurrent misses for the same version share one computation.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "inventory", "summary")
	if err != nil {
		return Summary{}, fmt.Errorf("inventory: build cache key: %w", err)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var summary Summary
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &summary, func(ctx context.Context) (any, error) {
			levels, err := s.repo.ListStockLevels(ctx)
			if err != nil {
				return nil, err
			}
			return BuildSummary(levels), nil
		})
		return summary, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

// LowStock lists products at or below their minimum, out-of-stock first.
func (s *Service) LowStock(ctx context.Context) ([]StockItem, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]StockItem, 0, len(summary.OutOfStock)+len(summary.LowStock))
	items = append(items, summary.OutOfStock...)
	items = append(items, summary.LowStock...)
	return items, nil
}

// Invalidate bumps the report cache version after stock or catalog changes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
