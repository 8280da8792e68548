package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id string) (Product, error)
	Insert(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	SoftDelete(ctx context.Context, id, actorID string, at time.Time) error
	InsertActivity(ctx context.Context, entries ...activity.Entry) error
}

type txRepo struct {
	tx pgx.Tx
}

const productColumns = `id, name, sku, price, cost, stock, min_stock, category, deleted, deleted_at, COALESCE(deleted_by, ''), version, created_at, updated_at`

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads a live product.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND NOT deleted`, id)
	return scanProduct(row)
}

// List returns live products matching filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	conds := []string{"NOT deleted"}
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	switch filter.Status {
	case StatusOutOfStock:
		conds = append(conds, "stock <= 0")
	case StatusLowStock:
		conds = append(conds, "stock > 0 AND stock <= min_stock")
	case StatusInStock:
		conds = append(conds, "stock > min_stock")
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}

	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+where+
		fmt.Sprintf(` ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *txRepo) GetForUpdate(ctx context.Context, id string) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND NOT deleted FOR UPDATE`, id)
	return scanProduct(row)
}

func (r *txRepo) Insert(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, name, sku, price, cost, stock, min_stock, category, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.SKU, p.Price, p.Cost, p.Stock, p.MinStock, p.Category, p.Version, p.CreatedAt, p.UpdatedAt)
	return mapWriteError(err)
}

func (r *txRepo) Update(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products
		SET name = $2, sku = $3, price = $4, cost = $5, min_stock = $6, category = $7, version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $9 AND NOT deleted`,
		p.ID, p.Name, p.SKU, p.Price, p.Cost, p.MinStock, p.Category, p.UpdatedAt, p.Version)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) SoftDelete(ctx context.Context, id, actorID string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products
		SET deleted = TRUE, deleted_at = $2, deleted_by = $3, version = version + 1, updated_at = $2
		WHERE id = $1 AND NOT deleted`, id, at, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertActivity(ctx context.Context, entries ...activity.Entry) error {
	return activity.Insert(ctx, r.tx, entries...)
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Cost, &p.Stock, &p.MinStock, &p.Category,
		&p.Deleted, &p.DeletedAt, &p.DeletedBy, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	p.Status = Classify(p.Stock, p.MinStock)
	return p, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}
