package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecorder struct {
	entries []activity.Entry
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, entry activity.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func sampleEvent() inventory.LowStockEvent {
	return inventory.LowStockEvent{
		ProductID:     "p-widget",
		Name:          "Widget",
		Stock:         4,
		MinStock:      5,
		TransactionID: "t-1",
		OccurredAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLowStockJobRecordsAlert(t *testing.T) {
	rec := &fakeRecorder{}
	job := NewLowStockJob(rec, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLowStockTask(sampleEvent())
	require.NoError(t, err)
	require.Equal(t, TaskLowStockAlert, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	require.Equal(t, activity.ActionLowStockAlert, entry.Action)
	require.Equal(t, "low-stock:t-1:p-widget", entry.ID)
	require.Equal(t, SystemActor, entry.UserID)
	require.Equal(t, "p-widget", entry.ProductID)
	require.Equal(t, "t-1", entry.TransactionID)
	require.Equal(t, "Low stock: Widget has 4 units left (minimum 5)", entry.Details)
}

func TestLowStockJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewLowStockJob(&fakeRecorder{}, discardLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockAlert, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskLowStockAlert, []byte(`{"name":"x"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockJobAbsorbsRedelivery(t *testing.T) {
	rec := &fakeRecorder{err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})}
	job := NewLowStockJob(rec, discardLogger(), nil)
	task, err := NewLowStockTask(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLowStockJobPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	job := NewLowStockJob(&fakeRecorder{err: boom}, discardLogger(), nil)
	task, err := NewLowStockTask(sampleEvent())
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)

	var nilJob *LowStockJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}

type fakeCleaner struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, f.err
}

func TestCleanupJob(t *testing.T) {
	store := &fakeCleaner{removed: 7}
	job := NewCleanupJob(store, 72*time.Hour, discardLogger(), nil)
	task, err := NewIdempotencyCleanupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, store.olderThan)

	store.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))

	require.Error(t, NewCleanupJob(store, 0, nil, nil).Handle(context.Background(), task))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "x", Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientNotifyLowStock(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq}

	second := sampleEvent()
	second.ProductID = "p-gadget"
	require.NoError(t, client.NotifyLowStock(context.Background(), []inventory.LowStockEvent{sampleEvent(), second}))
	require.Len(t, enq.tasks, 2)

	var ev inventory.LowStockEvent
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &ev))
	require.Equal(t, "p-gadget", ev.ProductID)

	enq.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.NotifyLowStock(context.Background(), []inventory.LowStockEvent{sampleEvent()}))

	enq.err = errors.New("redis down")
	require.Error(t, client.NotifyLowStock(context.Background(), []inventory.LowStockEvent{sampleEvent()}))

	var nilClient *Client
	require.NoError(t, nilClient.NotifyLowStock(context.Background(), []inventory.LowStockEvent{sampleEvent()}))
	require.NoError(t, nilClient.Close())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthHandler(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(nil, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0}`, rr.Body.String())

	rr = serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}}, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"active":1,"retry":0}`, rr.Body.String())

	rr = serve(NewHandler(fakeInspector{err: errors.New("redis down")}, discardLogger()))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
