package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Jobs().Track("inventory:low_stock").End(nil)

	body := scrape(t, metrics)
	if !strings.Contains(body, `stockroom_jobs_total{job="inventory:low_stock",status="success"} 1`) {
		t.Fatalf("expected body to contain stockroom_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "stockroom_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "stockroom_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestTransactionMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveTransaction("sale", "committed", 12*time.Millisecond)
	metrics.ObserveTransaction("sale", "committed", 8*time.Millisecond)
	metrics.ObserveTransaction("refund", "rejected", time.Millisecond)
	metrics.ObserveRetry("sale")

	body := scrape(t, metrics)
	for _, want := range []string{
		`stockroom_transactions_total{outcome="committed",type="sale"} 2`,
		`stockroom_transactions_total{outcome="rejected",type="refund"} 1`,
		`stockroom_transaction_retries_total{type="sale"} 1`,
		`stockroom_transaction_duration_seconds_count{type="sale"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestJobTrackerCountsFailures(t *testing.T) {
	metrics := NewMetrics()
	boom := errors.New("boom")
	if err := metrics.Jobs().Track("maintenance:idempotency_cleanup").End(boom); !errors.Is(err, boom) {
		t.Fatalf("tracker must return the job error, got %v", err)
	}
	metrics.Jobs().AddPurgedKeys(3)
	metrics.Jobs().AddLowStockAlert()

	body := scrape(t, metrics)
	for _, want := range []string{
		`stockroom_jobs_failures_total{job="maintenance:idempotency_cleanup"} 1`,
		`stockroom_idempotency_keys_purged_total 3`,
		`stockroom_low_stock_alerts_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTransaction("sale", "committed", time.Second)
	m.ObserveRetry("sale")
	if m.Jobs() != nil {
		t.Fatal("nil metrics must have nil job metrics")
	}
	m.Jobs().AddLowStockAlert()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
