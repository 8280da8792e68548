package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// CacheInvalidator drops derived reports after catalog changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates catalog operations.
type Service struct {
	repo     RepositoryPort
	cache    CacheInvalidator
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, validate: shared.NewValidator(), logger: logger, now: time.Now}
}

// Get returns a live product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns a page of live products ordered by name.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	switch filter.Status {
	case "", StatusInStock, StatusLowStock, StatusOutOfStock:
	default:
		return Page{}, fmt.Errorf("%w: unknown status %q", ErrInvalidProduct, filter.Status)
	}
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Product{}
	}
	return Page{Products: items, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

// Create adds a product and logs product_created in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	if err := s.validate.Struct(input); err != nil {
		return Product{}, shared.ValidationError(ErrInvalidProduct, err)
	}
	if err := checkAmounts(&input.Price, &input.Cost); err != nil {
		return Product{}, err
	}

	now := s.now().UTC()
	product := Product{
		ID:        uuid.NewString(),
		Name:      input.Name,
		SKU:       input.SKU,
		Price:     input.Price,
		Cost:      input.Cost,
		Stock:     input.Stock,
		MinStock:  input.MinStock,
		Category:  strings.TrimSpace(input.Category),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	product.Status = Classify(product.Stock, product.MinStock)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Insert(ctx, product); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, activity.Entry{
			ID:          uuid.NewString(),
			Action:      activity.ActionProductCreated,
			UserID:      input.UserID,
			UserEmail:   input.UserEmail,
			ProductID:   product.ID,
			ProductName: product.Name,
			Details:     fmt.Sprintf("Created product %s (%s) with %d units", product.Name, product.SKU, product.Stock),
			Changes:     &activity.Changes{Before: activity.Snapshot{}, After: snapshot(product)},
			CreatedAt:   now,
		})
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return product, nil
}

// Update applies a partial update and logs product_updated with before/after.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Product, error) {
	if input.Stock != nil {
		return Product{}, ErrStockNotEditable
	}
	if err := s.validate.Struct(input); err != nil {
		return Product{}, shared.ValidationError(ErrInvalidProduct, err)
	}
	if err := checkAmounts(input.Price, input.Cost); err != nil {
		return Product{}, err
	}

	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := current
		if input.Name != nil {
			next.Name = strings.TrimSpace(*input.Name)
			if next.Name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidProduct)
			}
		}
		if input.SKU != nil {
			next.SKU = strings.TrimSpace(*input.SKU)
			if next.SKU == "" {
				return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
			}
		}
		if input.Price != nil {
			next.Price = *input.Price
		}
		if input.Cost != nil {
			next.Cost = *input.Cost
		}
		if input.MinStock != nil {
			next.MinStock = *input.MinStock
		}
		if input.Category != nil {
			next.Category = strings.TrimSpace(*input.Category)
		}
		now := s.now().UTC()
		next.UpdatedAt = now
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.Status = Classify(next.Stock, next.MinStock)
		updated = next
		return tx.InsertActivity(ctx, activity.Entry{
			ID:          uuid.NewString(),
			Action:      activity.ActionProductUpdated,
			UserID:      input.UserID,
			UserEmail:   input.UserEmail,
			ProductID:   next.ID,
			ProductName: next.Name,
			Details:     fmt.Sprintf("Updated product %s", next.Name),
			Changes:     &activity.Changes{Before: snapshot(current), After: snapshot(next)},
			CreatedAt:   now,
		})
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete soft-deletes a product and logs product_deleted.
func (s *Service) Delete(ctx context.Context, id string, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.SoftDelete(ctx, id, actor.UserID, now); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, activity.Entry{
			ID:          uuid.NewString(),
			Action:      activity.ActionProductDeleted,
			UserID:      actor.UserID,
			UserEmail:   actor.UserEmail,
			ProductID:   current.ID,
			ProductName: current.Name,
			Details:     fmt.Sprintf("Deleted product %s", current.Name),
			Changes:     &activity.Changes{Before: snapshot(current), After: activity.Snapshot{"deleted": true}},
			CreatedAt:   now,
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate inventory cache", slog.Any("error", err))
	}
}

// checkAmounts rejects a price or cost the catalog cannot store exactly. Nil means unchanged.
func checkAmounts(price, cost *decimal.Decimal) error {
	if price != nil {
		if reason := shared.CheckMoney(*price); reason != "" {
			return fmt.Errorf("%w: price %s", ErrInvalidProduct, reason)
		}
	}
	if cost != nil {
		if reason := shared.CheckMoney(*cost); reason != "" {
			return fmt.Errorf("%w: cost %s", ErrInvalidProduct, reason)
		}
	}
	return nil
}

func snapshot(p Product) activity.Snapshot {
	return activity.Snapshot{
		"name":     p.Name,
		"sku":      p.SKU,
		"price":    p.Price.String(),
		"cost":     p.Cost.String(),
		"stock":    p.Stock,
		"minStock": p.MinStock,
		"category": p.Category,
	}
}
