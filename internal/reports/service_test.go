package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/transactions"
)

var fixedNow = time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)

type stubSource struct {
	txns []transactions.Transaction
	err  error

	from, to time.Time
	userID   string
}

func (s *stubSource) Range(ctx context.Context, from, to time.Time, userID string) ([]transactions.Transaction, error) {
	s.from, s.to, s.userID = from, to, userID
	if s.err != nil {
		return nil, s.err
	}
	var out []transactions.Transaction
	for _, t := range s.txns {
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		if userID != "" && t.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type stubStock struct {
	summary inventory.Summary
	err     error
}

func (s stubStock) Summary(ctx context.Context) (inventory.Summary, error) {
	return s.summary, s.err
}

func txn(typ transactions.Type, total, user string, at time.Time) transactions.Transaction {
	return transactions.Transaction{
		ID:        user + at.Format(time.RFC3339Nano),
		Type:      typ,
		Total:     decimal.RequireFromString(total),
		UserID:    user,
		UserEmail: user + "@example.com",
		CreatedAt: at,
	}
}

func sampleTxns() []transactions.Transaction {
	day1 := time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 14, 16, 0, 0, 0, time.UTC)
	return []transactions.Transaction{
		txn(transactions.TypeSale, "10.00", "u1", day1),
		txn(transactions.TypeSale, "5.50", "u2", day1.Add(time.Hour)),
		txn(transactions.TypeSale, "20.10", "u1", day2),
		txn(transactions.TypeRefund, "5.50", "u2", day2.Add(time.Hour)),
		txn(transactions.TypeArrival, "100.00", "u2", day2.Add(2*time.Hour)),
		txn(transactions.TypeCorrection, "0", "u1", day2.Add(3*time.Hour)),
		txn(transactions.TypeSale, "99.99", "u3", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)),
	}
}

func newTestService(source TransactionSource, stock StockSource) *Service {
	svc := NewService(source, stock)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestSalesReportTotals(t *testing.T) {
	source := &stubSource{txns: sampleTxns()}
	stock := stubStock{summary: inventory.Summary{
		LowStock:   []inventory.StockItem{{ProductID: "p1"}},
		OutOfStock: []inventory.StockItem{{ProductID: "p2"}, {ProductID: "p3"}},
	}}
	svc := newTestService(source, stock)

	report, err := svc.Sales(context.Background(), SalesQuery{})
	require.NoError(t, err)
	require.Equal(t, PeriodWeek, report.Period.Label)
	require.Equal(t, fixedNow.Add(-7*day), source.from)
	require.Equal(t, fixedNow, source.to)

	sales := report.Sales
	require.Equal(t, "35.6", sales.GrossRevenue.String())
	require.Equal(t, "5.5", sales.TotalRefunds.String())
	require.Equal(t, "30.1", sales.TotalRevenue.String())
	require.Equal(t, 3, sales.TotalTransactions)
	require.Equal(t, 1, sales.RefundCount)
	require.Equal(t, 1, sales.ArrivalCount)
	require.Equal(t, "11.87", sales.AverageSale.String())
	require.Equal(t, TypeCounts{Sales: 3, Refunds: 1, Arrivals: 1, Corrections: 1}, sales.TransactionTypes)

	require.Len(t, sales.DailyBreakdown, 8)
	require.Equal(t, "2024-05-08", sales.DailyBreakdown[0].Date)
	require.Equal(t, "2024-05-15", sales.DailyBreakdown[7].Date)
	may13 := sales.DailyBreakdown[5]
	require.Equal(t, "2024-05-13", may13.Date)
	require.Equal(t, "15.5", may13.Revenue.String())
	require.Equal(t, 2, may13.Transactions)
	may14 := sales.DailyBreakdown[6]
	require.Equal(t, "20.1", may14.Revenue.String())
	require.Equal(t, "5.5", may14.Refunds.String())

	require.Equal(t, 3, report.Summary.LowStockItems)
	require.Equal(t, "30.1", report.Summary.TotalRevenue.String())
}

func TestStaffPerformanceRanksByRevenue(t *testing.T) {
	svc := newTestService(&stubSource{txns: sampleTxns()}, nil)

	report, err := svc.Sales(context.Background(), SalesQuery{})
	require.NoError(t, err)
	staff := report.Staff
	require.Equal(t, 2, staff.TotalActiveStaff)
	require.Equal(t, "u1", staff.AllStaff[0].UserID)
	require.Equal(t, "u1@example.com", staff.AllStaff[0].Email)
	require.Equal(t, 2, staff.AllStaff[0].TotalSales)
	require.Equal(t, 3, staff.AllStaff[0].TransactionCount)
	require.Equal(t, "30.1", staff.AllStaff[0].TotalRevenue.String())
	require.Equal(t, "15.05", staff.AllStaff[0].AverageSale.String())

	require.Equal(t, "u2", staff.AllStaff[1].UserID)
	require.Equal(t, 1, staff.AllStaff[1].RefundCount)
	require.Equal(t, 3, staff.AllStaff[1].TransactionCount)

	require.NotNil(t, staff.TopPerformer)
	require.Equal(t, "u1", staff.TopPerformer.UserID)
	require.Equal(t, "35.6", staff.TotalRevenue.String())
	require.Equal(t, 6, staff.TotalTransactions)
	require.Equal(t, "17.8", staff.AverageRevenuePerStaff.String())
	require.Zero(t, report.Summary.LowStockItems)
}

func TestSalesReportFiltersByUser(t *testing.T) {
	source := &stubSource{txns: sampleTxns()}
	svc := newTestService(source, nil)

	report, err := svc.Sales(context.Background(), SalesQuery{UserID: " u2 "})
	require.NoError(t, err)
	require.Equal(t, "u2", source.userID)
	require.Equal(t, 1, report.Sales.TotalTransactions)
	require.Equal(t, "0", report.Sales.TotalRevenue.String())
}

func TestEmptyWindow(t *testing.T) {
	svc := newTestService(&stubSource{}, nil)
	report, err := svc.Sales(context.Background(), SalesQuery{Period: PeriodToday})
	require.NoError(t, err)
	require.True(t, report.Sales.AverageSale.IsZero())
	require.Len(t, report.Sales.DailyBreakdown, 1)
	require.Empty(t, report.Staff.AllStaff)
	require.Nil(t, report.Staff.TopPerformer)
}

func TestResolveWindow(t *testing.T) {
	midnight := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		query      SalesQuery
		start, end time.Time
	}{
		{SalesQuery{Period: PeriodToday}, midnight, midnight.Add(day - time.Nanosecond)},
		{SalesQuery{Period: PeriodWeek}, fixedNow.Add(-7 * day), fixedNow},
		{SalesQuery{Period: PeriodMonth}, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), fixedNow},
		{SalesQuery{Period: PeriodYear}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), fixedNow},
		{
			SalesQuery{Period: PeriodCustom, StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
	}
	for _, tc := range cases {
		w, err := ResolveWindow(tc.query, fixedNow)
		require.NoError(t, err, tc.query.Period)
		require.Equal(t, tc.start, w.Start, tc.query.Period)
		require.Equal(t, tc.end, w.End, tc.query.Period)
	}
}

func TestResolveWindowRejects(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	cases := map[string]SalesQuery{
		"unknown period":  {Period: "decade"},
		"custom no dates": {Period: PeriodCustom},
		"custom reversed": {Period: PeriodCustom, StartDate: jan, EndDate: jan.Add(-2 * day)},
		"custom too long": {Period: PeriodCustom, StartDate: jan, EndDate: jan.Add(400 * day)},
	}
	for name, q := range cases {
		_, err := ResolveWindow(q, fixedNow)
		require.ErrorIs(t, err, ErrInvalidQuery, name)
		require.ErrorIs(t, err, httpx.ErrValidation, name)
	}
}

func TestSalesReportSourceErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := newTestService(&stubSource{err: boom}, nil).Sales(context.Background(), SalesQuery{})
	require.ErrorIs(t, err, boom)

	_, err = newTestService(&stubSource{}, stubStock{err: boom}).Sales(context.Background(), SalesQuery{})
	require.ErrorIs(t, err, boom)
}
