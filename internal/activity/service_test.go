package activity

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

type memoryRepo struct {
	entries []Entry
	filters []Filter
}

func (r *memoryRepo) Append(ctx context.Context, entries ...Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	r.filters = append(r.filters, filter)
	var matched []Entry
	for _, e := range r.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func seed(repo *memoryRepo, n int, base time.Time) {
	for i := 0; i < n; i++ {
		repo.entries = append(repo.entries, Entry{
			ID:        fmt.Sprintf("e%03d", i),
			Action:    StockAction("sale"),
			UserID:    "u1",
			UserEmail: "clerk@example.com",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestListDefaultsAndNewestFirst(t *testing.T) {
	repo := &memoryRepo{}
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seed(repo, 3, base)
	svc := NewService(repo)

	page, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, page.Logs, 3)
	require.Equal(t, "e002", page.Logs[0].ID)
	require.Equal(t, 1, page.Pagination.Page)
	require.Equal(t, 50, page.Pagination.PerPage)
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 1, page.Pagination.TotalPages)
}

func TestListClampsLimitAndExtendsEndDate(t *testing.T) {
	repo := &memoryRepo{}
	base := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	seed(repo, 2, base)
	svc := NewService(repo)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	page, err := svc.List(context.Background(), Filter{From: day, To: day, Limit: 5000})
	require.NoError(t, err)
	require.Len(t, page.Logs, 2)

	require.Len(t, repo.filters, 1)
	require.Equal(t, 200, repo.filters[0].Limit)
	require.Equal(t, day.Add(24*time.Hour-time.Nanosecond), repo.filters[0].To)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc := NewService(&memoryRepo{})
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.List(context.Background(), Filter{From: from, To: to})
	require.ErrorIs(t, err, ErrInvalidFilter)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestListEmptyReturnsEmptySlice(t *testing.T) {
	svc := NewService(&memoryRepo{})
	page, err := svc.List(context.Background(), Filter{Action: "nothing"})
	require.NoError(t, err)
	require.NotNil(t, page.Logs)
	require.Empty(t, page.Logs)
}

func TestRecordFillsIdentity(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)
	fixed := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.ErrorIs(t, svc.Record(context.Background(), Entry{}), ErrInvalidEntry)

	require.NoError(t, svc.Record(context.Background(), Entry{Action: ActionLowStockAlert, ProductID: "p1"}))
	require.Len(t, repo.entries, 1)
	require.NotEmpty(t, repo.entries[0].ID)
	require.Equal(t, fixed, repo.entries[0].CreatedAt)
}

func TestExportWalksPages(t *testing.T) {
	repo := &memoryRepo{}
	seed(repo, 450, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(repo)

	entries, err := svc.Export(context.Background(), Filter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, entries, 450)
	require.Len(t, repo.filters, 3)
	require.Equal(t, "e449", entries[0].ID)
}

func TestActionNames(t *testing.T) {
	require.Equal(t, "stock_arrival", StockAction("arrival"))
	require.Equal(t, "transaction_correction", TransactionAction("correction"))

	change := StockChange(10, 7)
	require.Equal(t, int64(10), change.Before["stock"])
	require.Equal(t, int64(7), change.After["stock"])
}
