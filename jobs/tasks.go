package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueEvents carries domain events emitted by the API.
	QueueEvents = "events"

	// TaskSalesOrderCreated fans out a created sales order.
	TaskSalesOrderCreated = "sales:order_created"
	// TaskSalesOrderCanceled fans out a canceled sales order.
	TaskSalesOrderCanceled = "sales:order_canceled"
	// TaskSalesOrderDeleted fans out a deleted sales order.
	TaskSalesOrderDeleted = "sales:order_deleted"
	// TaskInventoryLowStock signals a SKU at or below its low-stock threshold.
	TaskInventoryLowStock = "inventory:low_stock"
	// TaskLedgerIntegrity re-derives ledger aggregates and reports drift.
	TaskLedgerIntegrity = "inventory:ledger_integrity"
)

const defaultMaxRetry = 5

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOrderEventTask constructs an Asynq task for a sales order event. The
// task id is derived from the event so duplicate enqueues collapse.
func NewOrderEventTask(taskType string, evt sales.OrderEvent) (*asynq.Task, error) {
	switch taskType {
	case TaskSalesOrderCreated, TaskSalesOrderCanceled, TaskSalesOrderDeleted:
	default:
		return nil, fmt.Errorf("jobs: unsupported order task %q", taskType)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("jobs: order event without id")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body,
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.TaskID(taskType+":"+evt.ID),
	), nil
}

// NewLowStockTask constructs an Asynq task for a low-stock signal.
func NewLowStockTask(evt inventory.LowStockEvent) (*asynq.Task, error) {
	if evt.SKU == "" {
		return nil, fmt.Errorf("jobs: low stock event without sku")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStock, body, asynq.Queue(QueueEvents), asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewLedgerIntegrityTask constructs the scheduled ledger check.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
