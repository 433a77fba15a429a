package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	jobmetrics "github.com/odyssey-erp/warehouse-ops/internal/jobs"
)

// LedgerReader exposes a consistent view of ledger records and their cached
// aggregates.
type LedgerReader interface {
	Snapshot() inventory.LedgerSnapshot
}

// ErrLedgerDrift is returned when cached aggregates disagree with the records.
var ErrLedgerDrift = errors.New("inventory ledger drift detected")

// Drift describes one aggregate mismatch.
type Drift struct {
	Scope    string
	Key      string
	Expected inventory.Totals
	Actual   inventory.Totals
}

// LedgerIntegrityJob recomputes every aggregate tier from the records.
type LedgerIntegrityJob struct {
	Ledger  LedgerReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity check.
func NewLedgerIntegrityJob(ledger LedgerReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle runs Check and fails the task when drift is found.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	drift := j.Check()
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range drift {
		logger.ErrorContext(ctx, "ledger aggregate drift",
			slog.String("scope", d.Scope),
			slog.String("key", d.Key),
			slog.Any("expected", d.Expected),
			slog.Any("actual", d.Actual),
		)
	}
	if len(drift) > 0 {
		return fmt.Errorf("%w: %d mismatches", ErrLedgerDrift, len(drift))
	}
	logger.InfoContext(ctx, "ledger integrity check passed")
	return nil
}

// Check returns every mismatch between the records and the cached aggregates,
// including records violating 0 <= reserved <= on_hand.
func (j *LedgerIntegrityJob) Check() []Drift {
	var (
		drift   []Drift
		overall inventory.Totals
		bySKU   = map[string]inventory.Totals{}
		byWH    = map[string]inventory.Totals{}
	)
	snap := j.Ledger.Snapshot()
	for _, rec := range snap.Records {
		if rec.Reserved < 0 || rec.Reserved > rec.OnHand {
			drift = append(drift, Drift{
				Scope:  "record",
				Key:    rec.SKU + "/" + rec.WarehouseCode,
				Actual: inventory.Totals{OnHand: rec.OnHand, Reserved: rec.Reserved},
			})
		}
		bySKU[rec.SKU] = addTotals(bySKU[rec.SKU], rec)
		byWH[rec.WarehouseCode] = addTotals(byWH[rec.WarehouseCode], rec)
		overall = addTotals(overall, rec)
	}
	drift = append(drift, compareTier("sku", bySKU, snap.BySKU)...)
	drift = append(drift, compareTier("warehouse", byWH, snap.ByWarehouse)...)
	if snap.Overall != overall {
		drift = append(drift, Drift{Scope: "overall", Expected: overall, Actual: snap.Overall})
	}
	return drift
}

func addTotals(t inventory.Totals, rec inventory.Record) inventory.Totals {
	return inventory.Totals{OnHand: t.OnHand + rec.OnHand, Reserved: t.Reserved + rec.Reserved}
}

func compareTier(scope string, expected, actual map[string]inventory.Totals) []Drift {
	var drift []Drift
	for key, want := range expected {
		if got := actual[key]; got != want {
			drift = append(drift, Drift{Scope: scope, Key: key, Expected: want, Actual: got})
		}
	}
	for key, got := range actual {
		if _, ok := expected[key]; !ok && !got.IsZero() {
			drift = append(drift, Drift{Scope: scope, Key: key, Actual: got})
		}
	}
	return drift
}
