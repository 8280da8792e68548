package transactions

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

// Repository persists transactions and applies stock changes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations of one apply-and-log unit.
type TxRepository interface {
	// LockProducts row-locks the live products among ids, in ascending id order.
	LockProducts(ctx context.Context, ids []string) (map[string]ProductStock, error)
	InsertTransaction(ctx context.Context, txn Transaction) error
	// UpdateStock sets stock when the product is still at version.
	UpdateStock(ctx context.Context, productID string, stock, version int64, at time.Time) error
	InsertActivity(ctx context.Context, entries ...activity.Entry) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const transactionColumns = `id, type, total, payment_method, customer_name, customer_phone, notes, status, user_id, user_email, created_at`

// Get loads a transaction with its lines in submission order.
func (r *Repository) Get(ctx context.Context, id string) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return Transaction{}, err
	}
	txn.Items = items[id]
	return txn, nil
}

// List returns transactions matching filter, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Transaction, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("transactions: count: %w", err)
	}

	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("transactions: list: %w", err)
	}
	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, 0, err
	}
	if len(txns) == 0 {
		return txns, total, nil
	}

	ids := make([]string, len(txns))
	for i, t := range txns {
		ids[i] = t.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range txns {
		txns[i].Items = items[txns[i].ID]
	}
	return txns, total, nil
}

// Range returns transaction headers created within [from, to], oldest first.
// Items are not loaded. An empty userID matches every user.
func (r *Repository) Range(ctx context.Context, from, to time.Time, userID string) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE created_at >= $1 AND created_at <= $2 AND ($3 = '' OR user_id = $3)
		ORDER BY created_at, id`, from, to, userID)
	if err != nil {
		return nil, fmt.Errorf("transactions: range: %w", err)
	}
	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("transactions: range: %w", err)
	}
	return txns, nil
}

func (r *Repository) loadItems(ctx context.Context, ids []string) (map[string][]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT transaction_id, product_id, product_name, quantity, price, total
		FROM transaction_items WHERE transaction_id = ANY($1) ORDER BY transaction_id, line_no`, ids)
	if err != nil {
		return nil, fmt.Errorf("transactions: load items: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]Item, len(ids))
	for rows.Next() {
		var txnID string
		var it Item
		if err := rows.Scan(&txnID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.Total); err != nil {
			return nil, err
		}
		out[txnID] = append(out[txnID], it)
	}
	return out, rows.Err()
}

func (r *txRepo) LockProducts(ctx context.Context, ids []string) (map[string]ProductStock, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, stock, min_stock, version
		FROM products WHERE id = ANY($1) AND NOT deleted ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("transactions: lock products: %w", err)
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductStock, error) {
		var p ProductStock
		err := row.Scan(&p.ID, &p.Name, &p.Stock, &p.MinStock, &p.Version)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("transactions: lock products: %w", err)
	}
	out := make(map[string]ProductStock, len(locked))
	for _, p := range locked {
		out[p.ID] = p
	}
	return out, nil
}

func (r *txRepo) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID, string(txn.Type), txn.Total, string(txn.PaymentMethod), txn.CustomerInfo.Name, txn.CustomerInfo.Phone,
		txn.Notes, string(txn.Status), txn.UserID, txn.UserEmail, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("transactions: insert: %w", err)
	}
	batch := &pgx.Batch{}
	for i, it := range txn.Items {
		batch.Queue(`INSERT INTO transaction_items (transaction_id, line_no, product_id, product_name, quantity, price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, txn.ID, i+1, it.ProductID, it.ProductName, it.Quantity, it.Price, it.Total)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("transactions: insert items: %w", err)
	}
	return nil
}

func (r *txRepo) UpdateStock(ctx context.Context, productID string, stock, version int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock = $2, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $3 AND NOT deleted`, productID, stock, version, at)
	if err != nil {
		return fmt.Errorf("transactions: update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrStockConflict, productID)
	}
	return nil
}

func (r *txRepo) InsertActivity(ctx context.Context, entries ...activity.Entry) error {
	return activity.Insert(ctx, r.tx, entries...)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var txType, method, status string
	err := row.Scan(&t.ID, &txType, &t.Total, &method, &t.CustomerInfo.Name, &t.CustomerInfo.Phone,
		&t.Notes, &status, &t.UserID, &t.UserEmail, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	t.Type, t.PaymentMethod, t.Status = Type(txType), PaymentMethod(method), Status(status)
	return t, nil
}
