package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// StockStatus classifies a product's stock against its minimum level.
type StockStatus string

const (
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// Classify reports the stock status for the given levels.
func Classify(stock, minStock int64) StockStatus {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= minStock:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Product is a catalog item with its current stock level.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	Stock     int64           `json:"stock"`
	MinStock  int64           `json:"minStock"`
	Category  string          `json:"category"`
	Status    StockStatus     `json:"status"`
	Deleted   bool            `json:"deleted"`
	DeletedAt *time.Time      `json:"deletedAt,omitempty"`
	DeletedBy string          `json:"deletedBy,omitempty"`
	Version   int64           `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateInput describes a new catalog item. Stock is the opening level.
type CreateInput struct {
	Name     string          `json:"name" validate:"required,max=200"`
	SKU      string          `json:"sku" validate:"required,max=64"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int64           `json:"stock" validate:"gte=0,lte=1000000000000"`
	MinStock int64           `json:"minStock" validate:"gte=0,lte=1000000000000"`
	Category string          `json:"category" validate:"max=100"`
	shared.Actor
}

// UpdateInput carries a partial update; nil fields are left unchanged.
// Stock is not editable here, it only moves through recorded transactions.
type UpdateInput struct {
	Name     *string          `json:"name" validate:"omitempty,max=200"`
	SKU      *string          `json:"sku" validate:"omitempty,max=64"`
	Price    *decimal.Decimal `json:"price"`
	Cost     *decimal.Decimal `json:"cost"`
	MinStock *int64           `json:"minStock" validate:"omitempty,gte=0,lte=1000000000000"`
	Category *string          `json:"category" validate:"omitempty,max=100"`
	Stock    *int64           `json:"stock"`
	shared.Actor
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Search   string
	Category string
	Status   StockStatus
	Page     int
	Limit    int
}

// Page is one page of products.
type Page struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

var (
	// ErrNotFound indicates a missing or soft-deleted product.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "products: product not found")
	// ErrInvalidProduct wraps field-level validation failures.
	ErrInvalidProduct = httpx.NewError(httpx.ErrValidation, "products: invalid product")
	// ErrDuplicateSKU indicates another live product already uses the SKU.
	ErrDuplicateSKU = httpx.NewError(httpx.ErrConflict, "products: sku already in use")
	// ErrStockNotEditable rejects attempts to set stock outside the recorder.
	ErrStockNotEditable = httpx.NewError(httpx.ErrValidation, "products: stock changes must be recorded as transactions")
)
