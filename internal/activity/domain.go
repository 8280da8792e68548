package activity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Actions written by the catalog, the transaction recorder and the worker.
const (
	ActionProductCreated = "product_created"
	ActionProductUpdated = "product_updated"
	ActionProductDeleted = "product_deleted"
	ActionLowStockAlert  = "low_stock_alert"

	stockPrefix       = "stock_"
	transactionPrefix = "transaction_"
)

// StockAction names the per-line entry for a transaction type, e.g. stock_sale.
func StockAction(txType string) string { return stockPrefix + txType }

// TransactionAction names the summary entry for a transaction type, e.g. transaction_sale.
func TransactionAction(txType string) string { return transactionPrefix + txType }

// Snapshot is one side of a before/after change record.
type Snapshot map[string]any

// Changes records the state around a mutation.
type Changes struct {
	Before Snapshot `json:"before"`
	After  Snapshot `json:"after"`
}

// StockChange builds the before/after record of a stock movement.
func StockChange(before, after int64) *Changes {
	return &Changes{Before: Snapshot{"stock": before}, After: Snapshot{"stock": after}}
}

// Entry is a single append-only activity log record.
type Entry struct {
	ID            string           `json:"id"`
	Action        string           `json:"action"`
	UserID        string           `json:"userId"`
	UserEmail     string           `json:"userEmail"`
	ProductID     string           `json:"productId,omitempty"`
	ProductName   string           `json:"productName,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	TargetUserID  string           `json:"targetUserId,omitempty"`
	Details       string           `json:"details"`
	Changes       *Changes         `json:"changes,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	ItemsCount    *int             `json:"itemsCount,omitempty"`
	CreatedAt     time.Time        `json:"timestamp"`
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	UserID        string
	Action        string
	TargetUserID  string
	ProductID     string
	TransactionID string
	From          time.Time
	To            time.Time
	Page          int
	Limit         int
}

// Page is one page of entries, newest first.
type Page struct {
	Logs       []Entry           `json:"logs"`
	Pagination shared.Pagination `json:"pagination"`
}

var (
	// ErrInvalidEntry rejects entries missing their action or actor.
	ErrInvalidEntry = httpx.NewError(httpx.ErrValidation, "activity: invalid entry")
	// ErrInvalidFilter rejects contradictory list filters.
	ErrInvalidFilter = httpx.NewError(httpx.ErrValidation, "activity: invalid filter")
)
