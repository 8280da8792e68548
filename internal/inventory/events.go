package inventory

import "time"

// LowStockEvent reports a product whose stock fell from above its minimum
// to at or below it within one committed transaction.
type LowStockEvent struct {
	ProductID     string    `json:"productId"`
	Name          string    `json:"name"`
	Stock         int64     `json:"stock"`
	MinStock      int64     `json:"minStock"`
	TransactionID string    `json:"transactionId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// CrossedMinimum reports whether a move from before to after crosses minStock downward.
func CrossedMinimum(before, after, minStock int64) bool {
	return before > minStock && after <= minStock
}
