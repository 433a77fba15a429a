package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	jobmetrics "github.com/odyssey-erp/warehouse-ops/internal/jobs"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
)

// StockReader reports current availability of a SKU.
type StockReader interface {
	Available(sku string) int
}

// OrderEventJob consumes sales order events.
type OrderEventJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOrderEventJob initialises the order event handler.
func NewOrderEventJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderEventJob {
	return &OrderEventJob{Logger: logger, Metrics: metrics}
}

// Handle decodes and records one order event. Undecodable payloads are not retried.
func (j *OrderEventJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("order events: handler not configured")
	}
	tracker := j.Metrics.Track(t.Type())
	defer func() { err = tracker.End(err) }()

	var evt sales.OrderEvent
	if decodeErr := json.Unmarshal(t.Payload(), &evt); decodeErr != nil || evt.ID == "" {
		j.logger().Warn("discarding order event", slog.String("task", t.Type()), slog.Any("error", decodeErr))
		return asynq.SkipRetry
	}
	units := 0
	for _, l := range evt.Lines {
		units += l.Qty
	}
	j.logger().InfoContext(ctx, "sales order event",
		slog.String("task", t.Type()),
		slog.String("order_id", evt.ID),
		slog.String("tenant_id", evt.TenantID),
		slog.String("order_number", evt.OrderNumber),
		slog.String("status", string(evt.Status)),
		slog.Int("lines", len(evt.Lines)),
		slog.Int("units", units),
	)
	return nil
}

func (j *OrderEventJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// LowStockJob consumes low-stock signals. When a StockReader is attached the
// signal is re-checked against current availability first.
type LowStockJob struct {
	Stock   StockReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockJob initialises the low-stock handler.
func NewLowStockJob(stock StockReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	return &LowStockJob{Stock: stock, Logger: logger, Metrics: metrics}
}

// Handle reports whether the SKU is still low.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("low stock: handler not configured")
	}
	tracker := j.Metrics.Track(TaskInventoryLowStock)
	defer func() { err = tracker.End(err) }()

	var evt inventory.LowStockEvent
	if decodeErr := json.Unmarshal(t.Payload(), &evt); decodeErr != nil || evt.SKU == "" {
		j.logger().Warn("discarding low stock event", slog.Any("error", decodeErr))
		return asynq.SkipRetry
	}
	_, still := j.Check(evt)
	logger := j.logger().With(slog.String("sku", evt.SKU), slog.Int("threshold", evt.Threshold))
	if !still {
		logger.DebugContext(ctx, "low stock cleared before processing")
		return nil
	}
	logger.WarnContext(ctx, "low stock", slog.Int("available", evt.Available))
	return nil
}

// Check returns the current availability of the event's SKU and whether it is
// still at or below the threshold.
func (j *LowStockJob) Check(evt inventory.LowStockEvent) (int, bool) {
	available := evt.Available
	if j.Stock != nil {
		available = j.Stock.Available(evt.SKU)
	}
	return available, available <= evt.Threshold
}

func (j *LowStockJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
