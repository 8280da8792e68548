package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/internal/transactions"
)

const day = 24 * time.Hour

// TransactionSource reads recorded transactions in a time range.
type TransactionSource interface {
	Range(ctx context.Context, from, to time.Time, userID string) ([]transactions.Transaction, error)
}

// StockSource supplies the inventory figures quoted in the headline.
type StockSource interface {
	Summary(ctx context.Context) (inventory.Summary, error)
}

// Service aggregates recorded transactions into reports.
type Service struct {
	source TransactionSource
	stock  StockSource
	now    func() time.Time
}

// NewService builds Service. stock may be nil, leaving LowStockItems at zero.
func NewService(source TransactionSource, stock StockSource) *Service {
	return &Service{source: source, stock: stock, now: time.Now}
}

// Sales builds the sales report for q.
func (s *Service) Sales(ctx context.Context, q SalesQuery) (SalesReport, error) {
	window, err := ResolveWindow(q, s.now().UTC())
	if err != nil {
		return SalesReport{}, err
	}
	txns, err := s.source.Range(ctx, window.Start, window.End, strings.TrimSpace(q.UserID))
	if err != nil {
		return SalesReport{}, fmt.Errorf("reports: load transactions: %w", err)
	}

	report := SalesReport{
		Period: window,
		Sales:  BuildSalesMetrics(txns, window),
		Staff:  BuildStaffPerformance(txns),
	}
	report.Summary = Headline{
		TotalRevenue:      report.Sales.TotalRevenue,
		TotalTransactions: report.Sales.TotalTransactions,
		AverageSale:       report.Sales.AverageSale,
		TopPerformer:      report.Staff.TopPerformer,
	}
	if s.stock != nil {
		summary, err := s.stock.Summary(ctx)
		if err != nil {
			return SalesReport{}, fmt.Errorf("reports: inventory summary: %w", err)
		}
		report.Summary.LowStockItems = len(summary.LowStock) + len(summary.OutOfStock)
	}
	return report, nil
}

// ResolveWindow turns a query into an inclusive UTC window relative to now.
// An empty period means the last seven days.
func ResolveWindow(q SalesQuery, now time.Time) (Window, error) {
	today := now.Truncate(day)
	switch q.Period {
	case "", PeriodWeek:
		return Window{Start: now.Add(-7 * day), End: now, Label: PeriodWeek}, nil
	case PeriodToday:
		return Window{Start: today, End: today.Add(day - time.Nanosecond), Label: PeriodToday}, nil
	case PeriodMonth:
		return Window{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), End: now, Label: PeriodMonth}, nil
	case PeriodYear:
		return Window{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: now, Label: PeriodYear}, nil
	case PeriodCustom:
		if q.StartDate.IsZero() || q.EndDate.IsZero() {
			return Window{}, fmt.Errorf("%w: startDate and endDate are required for a custom period", ErrInvalidQuery)
		}
		start, end := q.StartDate.UTC(), q.EndDate.UTC()
		if end.Equal(end.Truncate(day)) {
			end = end.Add(day - time.Nanosecond)
		}
		if end.Before(start) {
			return Window{}, fmt.Errorf("%w: endDate precedes startDate", ErrInvalidQuery)
		}
		if end.Sub(start) > maxCustomDays*day {
			return Window{}, fmt.Errorf("%w: custom period must not exceed %d days", ErrInvalidQuery, maxCustomDays)
		}
		return Window{Start: start, End: end, Label: PeriodCustom}, nil
	default:
		return Window{}, fmt.Errorf("%w: period must be one of [today week month year custom]", ErrInvalidQuery)
	}
}

// BuildSalesMetrics totals txns, with one breakdown row per calendar day in window.
func BuildSalesMetrics(txns []transactions.Transaction, window Window) SalesMetrics {
	m := SalesMetrics{
		GrossRevenue:   decimal.Zero,
		TotalRefunds:   decimal.Zero,
		AverageSale:    decimal.Zero,
		DailyBreakdown: []DayTotals{},
	}
	index := make(map[string]int)
	for d := window.Start.Truncate(day); !d.After(window.End); d = d.Add(day) {
		key := d.Format(time.DateOnly)
		index[key] = len(m.DailyBreakdown)
		m.DailyBreakdown = append(m.DailyBreakdown, DayTotals{Date: key, Revenue: decimal.Zero, Refunds: decimal.Zero})
	}

	for _, t := range txns {
		i, inWindow := index[t.CreatedAt.UTC().Format(time.DateOnly)]
		switch t.Type {
		case transactions.TypeSale:
			m.TransactionTypes.Sales++
			m.GrossRevenue = m.GrossRevenue.Add(t.Total)
			if inWindow {
				m.DailyBreakdown[i].Revenue = m.DailyBreakdown[i].Revenue.Add(t.Total)
				m.DailyBreakdown[i].Transactions++
			}
		case transactions.TypeRefund:
			m.TransactionTypes.Refunds++
			m.TotalRefunds = m.TotalRefunds.Add(t.Total)
			if inWindow {
				m.DailyBreakdown[i].Refunds = m.DailyBreakdown[i].Refunds.Add(t.Total)
			}
		case transactions.TypeArrival:
			m.TransactionTypes.Arrivals++
		case transactions.TypeSwap:
			m.TransactionTypes.Swaps++
		case transactions.TypeCorrection:
			m.TransactionTypes.Corrections++
		}
	}
	m.TotalRevenue = m.GrossRevenue.Sub(m.TotalRefunds)
	m.TotalTransactions = m.TransactionTypes.Sales
	m.RefundCount = m.TransactionTypes.Refunds
	m.ArrivalCount = m.TransactionTypes.Arrivals
	m.AverageSale = average(m.GrossRevenue, m.TotalTransactions)
	return m
}

// BuildStaffPerformance groups txns by user, highest sales revenue first.
func BuildStaffPerformance(txns []transactions.Transaction) StaffPerformance {
	byUser := make(map[string]*StaffTotals)
	for _, t := range txns {
		st, ok := byUser[t.UserID]
		if !ok {
			st = &StaffTotals{UserID: t.UserID, Email: t.UserEmail, TotalRevenue: decimal.Zero}
			byUser[t.UserID] = st
		}
		st.TransactionCount++
		switch t.Type {
		case transactions.TypeSale:
			st.TotalSales++
			st.TotalRevenue = st.TotalRevenue.Add(t.Total)
		case transactions.TypeRefund:
			st.RefundCount++
		}
	}

	perf := StaffPerformance{
		AllStaff:               make([]StaffTotals, 0, len(byUser)),
		TotalRevenue:           decimal.Zero,
		AverageRevenuePerStaff: decimal.Zero,
	}
	for _, st := range byUser {
		st.AverageSale = average(st.TotalRevenue, st.TotalSales)
		perf.AllStaff = append(perf.AllStaff, *st)
		perf.TotalRevenue = perf.TotalRevenue.Add(st.TotalRevenue)
		perf.TotalTransactions += st.TransactionCount
	}
	sort.Slice(perf.AllStaff, func(i, j int) bool {
		a, b := perf.AllStaff[i], perf.AllStaff[j]
		if c := a.TotalRevenue.Cmp(b.TotalRevenue); c != 0 {
			return c > 0
		}
		return a.UserID < b.UserID
	})
	perf.TotalActiveStaff = len(perf.AllStaff)
	if len(perf.AllStaff) > 0 {
		top := perf.AllStaff[0]
		perf.TopPerformer = &top
	}
	perf.AverageRevenuePerStaff = average(perf.TotalRevenue, len(perf.AllStaff))
	return perf
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(shared.MoneyScale)
}
