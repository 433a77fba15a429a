package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsRecorder counts reservation outcomes.
type MetricsRecorder interface {
	ObserveReservation(op, result string)
}

// Reservation outcome labels.
const (
	ResultOK           = "ok"
	ResultInsufficient = "insufficient"
	ResultFailure      = "failure"
	ResultRolledBack   = "rolled_back"
)

// Service coordinates ledger mutations. Every check-then-mutate sequence on a
// SKU runs under that SKU's lock.
type Service struct {
	ledger   *Ledger
	locks    *shared.KeyedMutex
	audit    AuditPort
	events   EventHandler
	metrics  MetricsRecorder
	logger   *slog.Logger
	lowStock int
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LowStockThreshold int
	Logger            *slog.Logger
	Metrics           MetricsRecorder
}

// NewService builds Service.
func NewService(ledger *Ledger, audit AuditPort, cfg ServiceConfig, events EventHandler) *Service {
	if ledger == nil {
		ledger = NewLedger()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:   ledger,
		locks:    shared.NewKeyedMutex(),
		audit:    audit,
		events:   events,
		metrics:  cfg.Metrics,
		logger:   logger,
		lowStock: cfg.LowStockThreshold,
	}
}

// Ledger exposes the underlying ledger for read paths.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Available returns the unreserved quantity of sku across all warehouses.
func (s *Service) Available(sku string) int {
	return s.ledger.SKUTotals(sku).Available()
}

// Summarize returns totals and records for sku.
func (s *Service) Summarize(sku string) Summary {
	return s.ledger.Summarize(sku)
}

// Upsert sets the stock position of one SKU/warehouse pair.
func (s *Service) Upsert(ctx context.Context, rec Record) (Record, error) {
	sku := NormalizeSKU(rec.SKU)
	if sku == "" {
		return Record{}, ErrInvalidRecord
	}
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	stored, err := s.ledger.Upsert(rec)
	unlock()
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, "inventory:upsert", stored.SKU, map[string]any{
		"warehouse": stored.WarehouseCode,
		"on_hand":   stored.OnHand,
		"reserved":  stored.Reserved,
	})
	return stored, nil
}

// ReplaceForSKU makes recs the full record set of sku.
func (s *Service) ReplaceForSKU(ctx context.Context, sku string, recs []Record) ([]Record, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, ErrInvalidRecord
	}
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	stored, err := s.ledger.ReplaceForSKU(sku, recs)
	unlock()
	if err != nil {
		return nil, err
	}
	s.record(ctx, "inventory:replace", sku, map[string]any{"records": len(stored)})
	return stored, nil
}

// Remove deletes the record for (sku, warehouse).
func (s *Service) Remove(ctx context.Context, sku, warehouse string) (Record, error) {
	sku = NormalizeSKU(sku)
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	rec, ok := s.ledger.Remove(sku, warehouse)
	unlock()
	if !ok {
		return Record{}, fmt.Errorf("inventory: record %s/%s: %w", sku, NormalizeWarehouse(warehouse), shared.ErrNotFound)
	}
	s.record(ctx, "inventory:remove", sku, map[string]any{"warehouse": rec.WarehouseCode})
	return rec, nil
}

// ClearSKU drops every record of sku.
func (s *Service) ClearSKU(ctx context.Context, sku string) int {
	sku = NormalizeSKU(sku)
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	n := s.ledger.ClearSKU(sku)
	unlock()
	if n > 0 {
		s.record(ctx, "inventory:clear_sku", sku, map[string]any{"records": n})
	}
	return n
}

// ClearWarehouse drops every record held in warehouse and returns the affected
// SKUs. Records added for other SKUs while the clear waits on its locks are
// picked up by a further pass, so the warehouse is empty when it returns
// unless a writer lands after the final pass.
func (s *Service) ClearWarehouse(ctx context.Context, warehouse string) []string {
	warehouse = NormalizeWarehouse(warehouse)
	seen := make(map[string]struct{})
	for {
		pending := s.ledger.SKUsInWarehouse(warehouse)
		if len(pending) == 0 {
			break
		}
		unlock := s.lockSKUs(pending)
		for _, sku := range pending {
			if _, ok := s.ledger.Remove(sku, warehouse); ok {
				seen[sku] = struct{}{}
			}
		}
		unlock()
	}
	if len(seen) == 0 {
		return nil
	}
	cleared := make([]string, 0, len(seen))
	for sku := range seen {
		cleared = append(cleared, sku)
	}
	sort.Strings(cleared)
	s.record(ctx, "inventory:clear_warehouse", warehouse, map[string]any{"skus": cleared})
	return cleared
}

// Reserve earmarks qty of sku, filling the most available warehouse first.
// It either places the whole quantity or changes nothing.
func (s *Service) Reserve(ctx context.Context, sku string, qty int) ([]Allocation, error) {
	sku = NormalizeSKU(sku)
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	allocs, err := s.reserveLocked(sku, qty)
	unlock()
	if err != nil {
		s.observeReserveError(err)
		return nil, err
	}
	s.observe("reserve", ResultOK)
	s.afterReserve(ctx, sku, allocs)
	return allocs, nil
}

// Release returns up to qty reserved units of sku, preferring the given
// warehouse. Over-release is capped at what is reserved.
func (s *Service) Release(ctx context.Context, sku string, qty int, preferredWarehouse string) []Allocation {
	sku = NormalizeSKU(sku)
	unlock := s.locks.Lock(shared.SKULockKey(sku))
	allocs := s.releaseLocked(sku, qty, preferredWarehouse)
	unlock()
	s.observe("release", ResultOK)
	if len(allocs) > 0 {
		s.record(ctx, "inventory:release", sku, map[string]any{
			"requested":   qty,
			"released":    sumAllocations(allocs),
			"allocations": allocs,
		})
	}
	return allocs
}

// Begin locks every given SKU until the returned transaction is committed or
// rolled back. Locks are taken in sorted order.
func (s *Service) Begin(ctx context.Context, skus ...string) Txn {
	normalized := make([]string, 0, len(skus))
	locked := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		sku = NormalizeSKU(sku)
		if sku == "" {
			continue
		}
		if _, ok := locked[sku]; ok {
			continue
		}
		locked[sku] = struct{}{}
		normalized = append(normalized, sku)
	}
	return &txn{
		svc:    s,
		ctx:    ctx,
		locked: locked,
		unlock: s.lockSKUs(normalized),
	}
}

func (s *Service) lockSKUs(skus []string) func() {
	keys := make([]string, 0, len(skus))
	for _, sku := range skus {
		keys = append(keys, shared.SKULockKey(sku))
	}
	return s.locks.LockAll(keys...)
}

func (s *Service) reserveLocked(sku string, qty int) ([]Allocation, error) {
	if sku == "" {
		return nil, ErrInvalidRecord
	}
	if qty <= 0 {
		return nil, nil
	}
	available := s.ledger.SKUTotals(sku).Available()
	if qty > available {
		return nil, fmt.Errorf("%w: sku %s requested %d available %d", ErrInsufficientStock, sku, qty, available)
	}
	updated, allocs, err := planReservation(s.ledger.ListForSKU(sku), qty)
	if err != nil {
		return nil, fmt.Errorf("inventory: reserve %s: %w", sku, err)
	}
	s.ledger.Apply(updated)
	return allocs, nil
}

func (s *Service) releaseLocked(sku string, qty int, preferred string) []Allocation {
	if sku == "" || qty <= 0 {
		return nil
	}
	updated, allocs := planRelease(s.ledger.ListForSKU(sku), qty, NormalizeWarehouse(preferred))
	s.ledger.Apply(updated)
	return allocs
}

// restoreLocked undoes allocations made by reserveLocked on the same records.
func (s *Service) restoreLocked(sku string, allocs []Allocation) {
	recs := make([]Record, 0, len(allocs))
	for _, a := range allocs {
		rec, ok := s.ledger.Get(sku, a.WarehouseCode)
		if !ok {
			s.logger.Error("rollback target missing", slog.String("sku", sku), slog.String("warehouse", a.WarehouseCode))
			continue
		}
		rec.Reserved -= a.Qty
		recs = append(recs, rec)
	}
	s.ledger.Apply(recs)
}

func (s *Service) afterReserve(ctx context.Context, sku string, allocs []Allocation) {
	s.record(ctx, "inventory:reserve", sku, map[string]any{
		"reserved":    sumAllocations(allocs),
		"allocations": allocs,
	})
	if s.events == nil || s.lowStock <= 0 {
		return
	}
	available := s.Available(sku)
	if available > s.lowStock {
		return
	}
	evt := LowStockEvent{SKU: sku, Available: available, Threshold: s.lowStock, RaisedAt: time.Now().UTC()}
	if err := s.events.HandleLowStock(ctx, evt); err != nil {
		s.logger.Warn("low stock event", slog.String("sku", sku), slog.Any("error", err))
	}
}

func (s *Service) observeReserveError(err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		s.observe("reserve", ResultInsufficient)
	default:
		s.observe("reserve", ResultFailure)
		s.logger.Error("reservation failed", slog.Any("error", err))
	}
}

func (s *Service) observe(op, result string) {
	if s.metrics != nil {
		s.metrics.ObserveReservation(op, result)
	}
}

func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: shared.TenantFromContext(ctx),
		Action:   action,
		Entity:   "inventory",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
