package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/internal/transactions"
	"github.com/odyssey-erp/stockroom/jobs"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/stock")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3, cfg.TxMaxRetries)
	require.Equal(t, 10*time.Second, cfg.TxTimeout)
	require.Equal(t, 25*time.Millisecond, cfg.TxRetryBackoff)
	require.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.AllowNegativeStock)
	require.True(t, cfg.IsDevelopment())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverridesAndValidation(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("TX_MAX_RETRIES", "5")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.True(t, cfg.AllowNegativeStock)
	require.Equal(t, 5, cfg.TxMaxRetries)

	t.Setenv("TX_MAX_RETRIES", "-1")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("TX_MAX_RETRIES", "3")
	t.Setenv("TX_TIMEOUT", "0s")
	_, err = LoadConfig()
	require.Error(t, err)

	var nilCfg *Config
	require.False(t, nilCfg.IsProduction())
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "test", LogFormat: "json"}, "stockroom")
	logger.Info("hello", slog.Int("n", 1))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "stockroom", line["service"])
	require.Equal(t, "test", line["env"])

	buf.Reset()
	newLogger(&buf, &Config{LogFormat: "pretty"}, "").Info("plain")
	require.Contains(t, buf.String(), "msg=plain")
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

type noTransactions struct{}

func (noTransactions) Range(ctx context.Context, from, to time.Time, userID string) ([]transactions.Transaction, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reports.NewHandler(logger, reports.NewService(noTransactions{}, nil)),
		JobHandler:    jobs.NewHandler(nil, logger),
		Metrics:       observability.NewMetrics(),
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "development", RateLimitPerMin: 100})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports/sales?period=today", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), `stockroom_http_requests_total{code="200",route="/healthz"} 1`), rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"route not found"}`, rr.Body.String())
}

func TestRouterRateLimits(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "development", RateLimitPerMin: 2})

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes[i] = rr.Code
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
