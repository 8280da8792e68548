package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert records an alert for a product that reached its minimum.
	TaskLowStockAlert = "inventory:low_stock"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NewLowStockTask constructs an Asynq task for one low-stock event. The task
// id is derived from the transaction and product so duplicates collapse.
func NewLowStockTask(ev inventory.LowStockEvent) (*asynq.Task, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(lowStockTaskID(ev)),
	), nil
}

func lowStockTaskID(ev inventory.LowStockEvent) string {
	return "low-stock:" + ev.TransactionID + ":" + ev.ProductID
}

// CleanupPayload carries scheduling metadata for the cleanup job.
type CleanupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
