package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Execer is satisfied by pgx.Tx and *pgxpool.Pool, letting other packages
// write entries inside their own transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertEntrySQL = `INSERT INTO activity_logs
	(id, action, user_id, user_email, product_id, product_name, transaction_id, target_user_id, details, changes, total, items_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Insert appends entries using ex, filling missing ids and timestamps.
func Insert(ctx context.Context, ex Execer, entries ...Entry) error {
	now := time.Now().UTC()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		var changes []byte
		if e.Changes != nil {
			raw, err := json.Marshal(e.Changes)
			if err != nil {
				return fmt.Errorf("activity: encode changes: %w", err)
			}
			changes = raw
		}
		var total decimal.NullDecimal
		if e.Total != nil {
			total = decimal.NewNullDecimal(*e.Total)
		}
		var items *int32
		if e.ItemsCount != nil {
			n := int32(*e.ItemsCount)
			items = &n
		}
		if _, err := ex.Exec(ctx, insertEntrySQL,
			e.ID, e.Action, e.UserID, e.UserEmail, e.ProductID, e.ProductName, e.TransactionID,
			e.TargetUserID, e.Details, changes, total, items, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("activity: insert %s: %w", e.Action, err)
		}
	}
	return nil
}

// Repository persists activity entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes standalone entries outside any caller transaction.
func (r *Repository) Append(ctx context.Context, entries ...Entry) error {
	return Insert(ctx, r.pool, entries...)
}

// List returns the filtered page and the total number of matching entries.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("activity: count: %w", err)
	}

	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	query := `SELECT id, action, user_id, user_email, product_id, product_name, transaction_id, target_user_id,
		details, changes, total, items_count, created_at
		FROM activity_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("activity: list: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, 0, fmt.Errorf("activity: scan: %w", err)
	}
	return entries, total, nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.TargetUserID != "" {
		add("target_user_id = $%d", f.TargetUserID)
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.TransactionID != "" {
		add("transaction_id = $%d", f.TransactionID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e       Entry
		changes []byte
		total   decimal.NullDecimal
		items   *int32
	)
	if err := row.Scan(&e.ID, &e.Action, &e.UserID, &e.UserEmail, &e.ProductID, &e.ProductName,
		&e.TransactionID, &e.TargetUserID, &e.Details, &changes, &total, &items, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	if len(changes) > 0 {
		e.Changes = &Changes{}
		if err := json.Unmarshal(changes, e.Changes); err != nil {
			return Entry{}, err
		}
	}
	if total.Valid {
		e.Total = &total.Decimal
	}
	if items != nil {
		n := int(*items)
		e.ItemsCount = &n
	}
	return e, nil
}
