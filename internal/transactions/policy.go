package transactions

import "github.com/shopspring/decimal"

// MaxQuantity bounds a single line quantity, and the target of a correction.
const MaxQuantity int64 = 1_000_000_000

// StockPolicy maps each transaction type to the stock level one line leaves
// behind, given the current level and the line quantity.
var StockPolicy = map[Type]func(current, quantity int64) int64{
	TypeSale:       func(current, quantity int64) int64 { return current - quantity },
	TypeArrival:    func(current, quantity int64) int64 { return current + quantity },
	TypeRefund:     func(current, quantity int64) int64 { return current + quantity },
	TypeCorrection: func(_, quantity int64) int64 { return quantity },
	TypeSwap:       func(current, _ int64) int64 { return current },
}

// Apply returns the stock after applying one line of type t.
func (t Type) Apply(current, quantity int64) int64 {
	return StockPolicy[t](current, quantity)
}

// Adds reports whether t increases stock by the line quantity.
func (t Type) Adds() bool {
	return t == TypeArrival || t == TypeRefund
}

// lineTotal is the submitted line total, or price times quantity when omitted.
func lineTotal(in ItemInput) decimal.Decimal {
	if in.Total != nil {
		return *in.Total
	}
	return in.Price.Mul(decimal.NewFromInt(in.Quantity))
}
