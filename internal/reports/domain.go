package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Period names the reporting window.
type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

// maxCustomDays bounds a custom window so the daily breakdown stays small.
const maxCustomDays = 366

// SalesQuery selects the transactions a sales report covers.
type SalesQuery struct {
	Period    Period
	StartDate time.Time
	EndDate   time.Time
	UserID    string
}

// Window is the resolved reporting range, both ends inclusive.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label Period    `json:"label"`
}

// DayTotals is one day of the daily breakdown.
type DayTotals struct {
	Date         string          `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
	Refunds      decimal.Decimal `json:"refunds"`
}

// TypeCounts counts transactions per type.
type TypeCounts struct {
	Sales       int `json:"sales"`
	Refunds     int `json:"refunds"`
	Arrivals    int `json:"arrivals"`
	Swaps       int `json:"swaps"`
	Corrections int `json:"corrections"`
}

// SalesMetrics totals sales and refunds in the window. TotalRevenue is net of refunds.
type SalesMetrics struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	GrossRevenue      decimal.Decimal `json:"grossRevenue"`
	TotalRefunds      decimal.Decimal `json:"totalRefunds"`
	TotalTransactions int             `json:"totalTransactions"`
	RefundCount       int             `json:"refundCount"`
	ArrivalCount      int             `json:"arrivalCount"`
	AverageSale       decimal.Decimal `json:"averageSale"`
	DailyBreakdown    []DayTotals     `json:"dailyBreakdown"`
	TransactionTypes  TypeCounts      `json:"transactionTypes"`
}

// StaffTotals is one user's activity in the window.
type StaffTotals struct {
	UserID           string          `json:"userId"`
	Email            string          `json:"email"`
	TotalSales       int             `json:"totalSales"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TransactionCount int             `json:"transactionCount"`
	RefundCount      int             `json:"refundCount"`
	AverageSale      decimal.Decimal `json:"averageSale"`
}

// StaffPerformance ranks users by sales revenue.
type StaffPerformance struct {
	AllStaff               []StaffTotals   `json:"allStaff"`
	TopPerformer           *StaffTotals    `json:"topPerformer"`
	TotalActiveStaff       int             `json:"totalActiveStaff"`
	TotalRevenue           decimal.Decimal `json:"totalRevenue"`
	TotalTransactions      int             `json:"totalTransactions"`
	AverageRevenuePerStaff decimal.Decimal `json:"averageRevenuePerStaff"`
}

// Headline repeats the figures dashboards show first.
type Headline struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalTransactions int             `json:"totalTransactions"`
	AverageSale       decimal.Decimal `json:"averageSale"`
	LowStockItems     int             `json:"lowStockItems"`
	TopPerformer      *StaffTotals    `json:"topPerformer"`
}

// SalesReport is the response of GET /api/reports/sales.
type SalesReport struct {
	Period  Window           `json:"period"`
	Sales   SalesMetrics     `json:"sales"`
	Staff   StaffPerformance `json:"staff"`
	Summary Headline         `json:"summary"`
}

// ErrInvalidQuery rejects unknown periods and malformed custom windows.
var ErrInvalidQuery = httpx.NewError(httpx.ErrValidation, "reports: invalid query")
