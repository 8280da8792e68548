package activity

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo))
	r := chi.NewRouter()
	r.Route("/api/activity-logs", h.MountRoutes)
	return r
}

func TestHandlerListFiltersAndPaginates(t *testing.T) {
	repo := &memoryRepo{}
	seed(repo, 5, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	total := decimal.RequireFromString("150")
	items := 2
	repo.entries = append(repo.entries, Entry{
		ID:         "summary",
		Action:     TransactionAction("sale"),
		UserID:     "u2",
		Total:      &total,
		ItemsCount: &items,
		CreatedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	router := newTestRouter(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/activity-logs?userId=u1&limit=2&page=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success    bool    `json:"success"`
		Logs       []Entry `json:"logs"`
		Pagination struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Total int `json:"total"`
			Pages int `json:"pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Logs, 2)
	require.Equal(t, "e002", body.Logs[0].ID)
	require.Equal(t, 2, body.Pagination.Page)
	require.Equal(t, 2, body.Pagination.Limit)
	require.Equal(t, 5, body.Pagination.Total)
	require.Equal(t, 3, body.Pagination.Pages)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/activity-logs?action=transaction_sale", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
	require.Equal(t, "150", body.Logs[0].Total.String())
	require.Equal(t, 2, *body.Logs[0].ItemsCount)
}

func TestHandlerRejectsBadQuery(t *testing.T) {
	router := newTestRouter(&memoryRepo{})

	for _, target := range []string{
		"/api/activity-logs?page=abc",
		"/api/activity-logs?startDate=yesterday",
		"/api/activity-logs?startDate=2024-03-05&endDate=2024-03-01",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		require.Contains(t, rr.Body.String(), `"error"`)
	}
}

func TestHandlerExportWritesCSV(t *testing.T) {
	repo := &memoryRepo{}
	repo.entries = []Entry{{
		ID:            "a",
		Action:        StockAction("sale"),
		UserEmail:     "clerk@example.com",
		Details:       `Sale: 3 units of "Widget"`,
		TransactionID: "tx1",
		ProductID:     "p1",
		Changes:       StockChange(10, 7),
		CreatedAt:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}}
	router := newTestRouter(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/activity-logs/export", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment; filename=activity-logs-"))

	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, exportHeader, records[0])
	require.Equal(t, `Sale: 3 units of "Widget"`, records[1][3])
	require.JSONEq(t, `{"before":{"stock":10},"after":{"stock":7}}`, records[1][6])
}
