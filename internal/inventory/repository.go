package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads stock levels from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListStockLevels returns every live product ordered by name.
func (r *Repository) ListStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sku, category, stock, min_stock, price, cost
		FROM products WHERE NOT deleted ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list stock levels: %w", err)
	}
	levels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockLevel, error) {
		var l StockLevel
		err := row.Scan(&l.ProductID, &l.Name, &l.SKU, &l.Category, &l.Stock, &l.MinStock, &l.Price, &l.Cost)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: scan stock levels: %w", err)
	}
	return levels, nil
}
