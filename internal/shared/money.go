package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for amounts.
const MoneyScale = 2

// MaxMoney bounds amounts to what a NUMERIC(14,2) column holds.
var MaxMoney = decimal.RequireFromString("999999999999.99")

// CheckMoney returns a reason amount cannot be stored exactly, or "" when it can.
func CheckMoney(amount decimal.Decimal) string {
	switch {
	case amount.IsNegative():
		return "must be >= 0"
	case !amount.Equal(amount.Round(MoneyScale)):
		return fmt.Sprintf("must have at most %d decimal places", MoneyScale)
	case amount.GreaterThan(MaxMoney):
		return "must be <= " + MaxMoney.StringFixed(MoneyScale)
	default:
		return ""
	}
}
