package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// SystemActor identifies entries written by the worker.
const SystemActor = "system"

// ActivityRecorder appends activity log entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry) error
}

// LowStockJob writes a low_stock_alert entry per event.
type LowStockJob struct {
	Activity ActivityRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockJob initialises the low-stock handler.
func NewLowStockJob(recorder ActivityRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	return &LowStockJob{Activity: recorder, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockAlert tasks. Redelivered tasks are absorbed
// by the entry id, which is stable per transaction and product.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Activity == nil {
		return errors.New("low stock: handler not configured")
	}
	var ev inventory.LowStockEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil || ev.ProductID == "" {
		return fmt.Errorf("low stock: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskLowStockAlert)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("product_id", ev.ProductID),
		slog.String("transaction_id", ev.TransactionID),
	)
	err := j.Activity.Record(ctx, activity.Entry{
		ID:            lowStockTaskID(ev),
		Action:        activity.ActionLowStockAlert,
		UserID:        SystemActor,
		UserEmail:     SystemActor,
		ProductID:     ev.ProductID,
		ProductName:   ev.Name,
		TransactionID: ev.TransactionID,
		Details:       fmt.Sprintf("Low stock: %s has %d units left (minimum %d)", ev.Name, ev.Stock, ev.MinStock),
		Changes:       &activity.Changes{Before: activity.Snapshot{}, After: activity.Snapshot{"stock": ev.Stock, "minStock": ev.MinStock}},
		CreatedAt:     ev.OccurredAt,
	})
	switch {
	case err == nil:
	case db.IsUniqueViolation(err):
		logger.Debug("low stock alert already recorded")
		return nil
	case errors.Is(err, activity.ErrInvalidEntry):
		return fmt.Errorf("low stock: %v: %w", err, asynq.SkipRetry)
	default:
		logger.Error("record low stock alert", slog.Any("error", err))
		return err
	}

	j.Metrics.AddLowStockAlert()
	logger.Warn("product at or below minimum stock",
		slog.String("name", ev.Name),
		slog.Int64("stock", ev.Stock),
		slog.Int64("min_stock", ev.MinStock))
	return nil
}

func (j *LowStockJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
