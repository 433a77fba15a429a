package perf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	jobmetrics "github.com/odyssey-erp/warehouse-ops/internal/jobs"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
	"github.com/odyssey-erp/warehouse-ops/jobs"
)

func TestEventJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	orders := jobs.NewOrderEventJob(nil, metrics)
	lowStock := jobs.NewLowStockJob(nil, nil, metrics)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		body, err := json.Marshal(sales.OrderEvent{ID: "ord", OrderNumber: "SO-20240515-001", Lines: []sales.OrderLineEvent{{SKU: "A", Qty: 1}}})
		require.NoError(t, err)
		require.NoError(t, orders.Handle(ctx, asynq.NewTask(jobs.TaskSalesOrderCreated, body)))
	}
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, orders.Handle(ctx, asynq.NewTask(jobs.TaskSalesOrderCreated, []byte("not json"))), asynq.SkipRetry)
	}
	for i := 0; i < 20; i++ {
		body, err := json.Marshal(inventory.LowStockEvent{SKU: "A", Available: 1, Threshold: 2})
		require.NoError(t, err)
		require.NoError(t, lowStock.Handle(ctx, asynq.NewTask(jobs.TaskInventoryLowStock, body)))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	success := metricValue(t, families, "odyssey_warehouse_jobs_total", map[string]string{"task": jobs.TaskSalesOrderCreated, "outcome": jobmetrics.OutcomeOK})
	discarded := metricValue(t, families, "odyssey_warehouse_jobs_total", map[string]string{"task": jobs.TaskSalesOrderCreated, "outcome": jobmetrics.OutcomeDiscarded})
	require.Equal(t, 100.0, success)
	require.Equal(t, 3.0, discarded)
	if ratio := success / (success + discarded); ratio < 0.9 {
		t.Fatalf("order event success ratio too low: %f", ratio)
	}

	if mean := histogramMean(t, families, "odyssey_warehouse_job_duration_seconds", map[string]string{"domain": "inventory", "task": jobs.TaskInventoryLowStock}); mean > 0.05 {
		t.Fatalf("low stock handling above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != want {
			return false
		}
		found++
	}
	return found == len(labels)
}
