package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/products"
)

// StockLevel is the per-product input the report is computed from.
type StockLevel struct {
	ProductID string
	Name      string
	SKU       string
	Category  string
	Stock     int64
	MinStock  int64
	Price     decimal.Decimal
	Cost      decimal.Decimal
}

// StockItem is a product listed in a report section.
type StockItem struct {
	ProductID string               `json:"productId"`
	Name      string               `json:"name"`
	SKU       string               `json:"sku"`
	Category  string               `json:"category"`
	Stock     int64                `json:"stock"`
	MinStock  int64                `json:"minStock"`
	Needed    int64                `json:"needed"`
	Status    products.StockStatus `json:"status"`
}

// Summary aggregates stock health and value across live products.
type Summary struct {
	TotalProducts    int             `json:"totalProducts"`
	TotalUnits       int64           `json:"totalUnits"`
	InventoryValue   decimal.Decimal `json:"inventoryValue"`
	PotentialRevenue decimal.Decimal `json:"potentialRevenue"`
	HealthyCount     int             `json:"healthyCount"`
	LowStock         []StockItem     `json:"lowStock"`
	OutOfStock       []StockItem     `json:"outOfStock"`
}

// BuildSummary classifies every level and totals stock value at cost and at price.
func BuildSummary(levels []StockLevel) Summary {
	summary := Summary{
		TotalProducts:    len(levels),
		InventoryValue:   decimal.Zero,
		PotentialRevenue: decimal.Zero,
		LowStock:         []StockItem{},
		OutOfStock:       []StockItem{},
	}
	for _, l := range levels {
		qty := decimal.NewFromInt(l.Stock)
		if l.Stock > 0 {
			summary.TotalUnits += l.Stock
			summary.InventoryValue = summary.InventoryValue.Add(qty.Mul(l.Cost))
			summary.PotentialRevenue = summary.PotentialRevenue.Add(qty.Mul(l.Price))
		}
		status := products.Classify(l.Stock, l.MinStock)
		item := StockItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			SKU:       l.SKU,
			Category:  l.Category,
			Stock:     l.Stock,
			MinStock:  l.MinStock,
			Status:    status,
		}
		switch status {
		case products.StatusOutOfStock:
			item.Needed = max(l.MinStock-l.Stock, 1)
			summary.OutOfStock = append(summary.OutOfStock, item)
		case products.StatusLowStock:
			item.Needed = l.MinStock - l.Stock
			summary.LowStock = append(summary.LowStock, item)
		default:
			summary.HealthyCount++
		}
	}
	return summary
}
