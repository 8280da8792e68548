package transactions

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Type enumerates the kinds of stock movement the recorder accepts.
type Type string

const (
	TypeSale       Type = "sale"
	TypeArrival    Type = "arrival"
	TypeRefund     Type = "refund"
	TypeSwap       Type = "swap"
	TypeCorrection Type = "correction"
)

// Title returns the capitalised type name used in messages, e.g. "Sale".
// A Caser keeps state, so each call gets its own.
func (t Type) Title() string {
	return cases.Title(language.English).String(string(t))
}

// Valid reports whether t has a stock policy.
func (t Type) Valid() bool {
	_, ok := StockPolicy[t]
	return ok
}

// PaymentMethod records how a sale was settled.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentMixed    PaymentMethod = "mixed"
)

// Status is the lifecycle state of a recorded transaction.
type Status string

// StatusCompleted is the only state the recorder writes.
const StatusCompleted Status = "completed"

// CustomerInfo is optional buyer metadata carried on the record.
type CustomerInfo struct {
	Name  string `json:"name" validate:"max=200"`
	Phone string `json:"phone" validate:"max=50"`
}

// ItemInput is one submitted line. For corrections Quantity is the target
// stock level rather than a delta.
type ItemInput struct {
	ProductID   string           `json:"productId" validate:"required"`
	ProductName string           `json:"productName,omitempty" validate:"max=200"`
	Quantity    int64            `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	Total       *decimal.Decimal `json:"total,omitempty"`
}

// Request is a proposed transaction.
type Request struct {
	Type          Type             `json:"type" validate:"required,oneof=sale arrival refund swap correction"`
	Items         []ItemInput      `json:"items" validate:"required,min=1,dive"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	PaymentMethod PaymentMethod    `json:"paymentMethod" validate:"omitempty,oneof=cash card transfer mixed"`
	CustomerInfo  CustomerInfo     `json:"customerInfo"`
	Notes         string           `json:"notes" validate:"max=2000"`
	shared.Actor

	// IdempotencyKey is taken from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// Item is a stored line with its product name snapshot.
type Item struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

// Transaction is an immutable record of one reconciliation.
type Transaction struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CustomerInfo  CustomerInfo    `json:"customerInfo"`
	Notes         string          `json:"notes"`
	Status        Status          `json:"status"`
	UserID        string          `json:"userId"`
	UserEmail     string          `json:"userEmail"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Result is returned to the caller after a successful commit.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	Type   Type
	UserID string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// Page is one page of transactions, newest first.
type Page struct {
	Transactions []Transaction    `json:"transactions"`
	Pagination   shared.Pagination `json:"pagination"`
}

// ProductStock is the locked view of a product the recorder works against.
type ProductStock struct {
	ID       string
	Name     string
	Stock    int64
	MinStock int64
	Version  int64
}

var (
	// ErrInvalidRequest rejects malformed requests before any write.
	ErrInvalidRequest = httpx.NewError(httpx.ErrValidation, "transactions: invalid request")
	// ErrProductNotFound names a line whose product is missing or deleted.
	ErrProductNotFound = httpx.NewError(httpx.ErrNotFound, "transactions: product not found")
	// ErrInsufficientStock rejects lines that would take stock below zero.
	ErrInsufficientStock = httpx.NewError(httpx.ErrConflict, "transactions: insufficient stock")
	// ErrStorageFailure covers commit failures, including exhausted retries.
	ErrStorageFailure = httpx.NewError(httpx.ErrInternal, "transactions: storage failure")
	// ErrTimeout reports that the deadline passed before commit; nothing was written.
	ErrTimeout = httpx.NewError(httpx.ErrUnavailable, "transactions: timed out before commit")
	// ErrNotFound indicates an unknown transaction id.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "transactions: transaction not found")

	// ErrStockConflict means a product version moved under the unit; it is retried.
	ErrStockConflict = errors.New("transactions: stock changed concurrently")
)
