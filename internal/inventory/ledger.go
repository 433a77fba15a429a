package inventory

import (
	"sort"
	"sync"
)

// Ledger owns per (SKU, warehouse) stock records and keeps SKU, warehouse and
// overall totals in step with them. Totals are only ever moved by deltas and
// zeroed entries are dropped.
//
// Every method is atomic with respect to the ledger itself. Check-then-act
// sequences spanning several calls need an outer lock (see Service).
type Ledger struct {
	mu          sync.RWMutex
	records     map[recordKey]Record
	bySKU       map[string]map[string]struct{}
	skuTotals   map[string]Totals
	whTotals    map[string]Totals
	grandTotals Totals
}

// NewLedger constructs an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records:   make(map[recordKey]Record),
		bySKU:     make(map[string]map[string]struct{}),
		skuTotals: make(map[string]Totals),
		whTotals:  make(map[string]Totals),
	}
}

// Upsert inserts or replaces the record for (SKU, warehouse) and returns the
// stored value. A record left with zero on-hand is removed.
func (l *Ledger) Upsert(rec Record) (Record, error) {
	rec.SKU = NormalizeSKU(rec.SKU)
	rec.WarehouseCode = NormalizeWarehouse(rec.WarehouseCode)
	if rec.SKU == "" || rec.WarehouseCode == "" {
		return Record{}, ErrInvalidRecord
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upsertLocked(rec.clamp()), nil
}

// Apply upserts a batch of already-normalised records under a single write lock.
func (l *Ledger) Apply(recs []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range recs {
		if rec.SKU == "" || rec.WarehouseCode == "" {
			continue
		}
		l.upsertLocked(rec.clamp())
	}
}

// Remove deletes the record for (SKU, warehouse).
func (l *Ledger) Remove(sku, warehouse string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeLocked(recordKey{sku: NormalizeSKU(sku), warehouse: NormalizeWarehouse(warehouse)})
}

// ReplaceForSKU makes recs the complete record set of sku. Records of other
// SKUs are never touched; entries in recs for a different SKU are ignored.
func (l *Ledger) ReplaceForSKU(sku string, recs []Record) ([]Record, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, ErrInvalidRecord
	}
	incoming := make(map[string]Record, len(recs))
	for _, rec := range recs {
		rec.WarehouseCode = NormalizeWarehouse(rec.WarehouseCode)
		if rec.WarehouseCode == "" {
			return nil, ErrInvalidRecord
		}
		if rec.SKU != "" && NormalizeSKU(rec.SKU) != sku {
			continue
		}
		rec.SKU = sku
		incoming[rec.WarehouseCode] = rec.clamp()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for wh := range l.bySKU[sku] {
		if _, keep := incoming[wh]; !keep {
			l.removeLocked(recordKey{sku: sku, warehouse: wh})
		}
	}
	for _, rec := range incoming {
		l.upsertLocked(rec)
	}
	return l.listLocked(sku), nil
}

// ClearSKU removes every record of sku and returns how many were dropped.
func (l *Ledger) ClearSKU(sku string) int {
	sku = NormalizeSKU(sku)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for wh := range l.bySKU[sku] {
		if _, ok := l.removeLocked(recordKey{sku: sku, warehouse: wh}); ok {
			n++
		}
	}
	return n
}

// SKUsInWarehouse lists the SKUs holding a record in warehouse.
func (l *Ledger) SKUsInWarehouse(warehouse string) []string {
	warehouse = NormalizeWarehouse(warehouse)
	l.mu.RLock()
	defer l.mu.RUnlock()
	var skus []string
	for key := range l.records {
		if key.warehouse == warehouse {
			skus = append(skus, key.sku)
		}
	}
	sort.Strings(skus)
	return skus
}

// Get returns the record for (SKU, warehouse).
func (l *Ledger) Get(sku, warehouse string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[recordKey{sku: NormalizeSKU(sku), warehouse: NormalizeWarehouse(warehouse)}]
	return rec, ok
}

// ListForSKU returns the records of sku ordered by warehouse code.
func (l *Ledger) ListForSKU(sku string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listLocked(NormalizeSKU(sku))
}

// Summarize returns the totals and records of sku.
func (l *Ledger) Summarize(sku string) Summary {
	sku = NormalizeSKU(sku)
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals := l.skuTotals[sku]
	return Summary{
		SKU:           sku,
		TotalOnHand:   totals.OnHand,
		TotalReserved: totals.Reserved,
		Items:         l.listLocked(sku),
	}
}

// SKUTotals returns the aggregate for one SKU.
func (l *Ledger) SKUTotals(sku string) Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.skuTotals[NormalizeSKU(sku)]
}

// Totals returns the overall aggregate.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.grandTotals
}

// TotalsByWarehouse returns a copy of the per-warehouse aggregates.
func (l *Ledger) TotalsByWarehouse() map[string]Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Totals, len(l.whTotals))
	for k, v := range l.whTotals {
		out[k] = v
	}
	return out
}

// TotalsBySKU returns a copy of the per-SKU aggregates.
func (l *Ledger) TotalsBySKU() map[string]Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Totals, len(l.skuTotals))
	for k, v := range l.skuTotals {
		out[k] = v
	}
	return out
}

// Records returns every record ordered by SKU then warehouse.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.recordsLocked()
}

// LedgerSnapshot is a point-in-time copy of the records and every aggregate
// tier, taken under one read lock.
type LedgerSnapshot struct {
	Records     []Record
	Overall     Totals
	BySKU       map[string]Totals
	ByWarehouse map[string]Totals
}

// Snapshot returns the records and cached aggregates as one consistent view.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := LedgerSnapshot{
		Records:     l.recordsLocked(),
		Overall:     l.grandTotals,
		BySKU:       make(map[string]Totals, len(l.skuTotals)),
		ByWarehouse: make(map[string]Totals, len(l.whTotals)),
	}
	for k, v := range l.skuTotals {
		snap.BySKU[k] = v
	}
	for k, v := range l.whTotals {
		snap.ByWarehouse[k] = v
	}
	return snap
}

func (l *Ledger) recordsLocked() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].WarehouseCode < out[j].WarehouseCode
	})
	return out
}

func (l *Ledger) upsertLocked(rec Record) Record {
	key := rec.key()
	if rec.OnHand == 0 {
		l.removeLocked(key)
		return rec
	}
	prev := l.records[key]
	l.records[key] = rec
	whs, ok := l.bySKU[rec.SKU]
	if !ok {
		whs = make(map[string]struct{})
		l.bySKU[rec.SKU] = whs
	}
	whs[rec.WarehouseCode] = struct{}{}
	l.applyDelta(rec.SKU, rec.WarehouseCode, rec.OnHand-prev.OnHand, rec.Reserved-prev.Reserved)
	return rec
}

func (l *Ledger) removeLocked(key recordKey) (Record, bool) {
	prev, ok := l.records[key]
	if !ok {
		return Record{}, false
	}
	delete(l.records, key)
	if whs := l.bySKU[key.sku]; whs != nil {
		delete(whs, key.warehouse)
		if len(whs) == 0 {
			delete(l.bySKU, key.sku)
		}
	}
	l.applyDelta(key.sku, key.warehouse, -prev.OnHand, -prev.Reserved)
	return prev, true
}

func (l *Ledger) applyDelta(sku, warehouse string, dOnHand, dReserved int) {
	if dOnHand == 0 && dReserved == 0 {
		return
	}
	l.skuTotals[sku] = l.skuTotals[sku].add(dOnHand, dReserved)
	if l.skuTotals[sku].IsZero() {
		delete(l.skuTotals, sku)
	}
	l.whTotals[warehouse] = l.whTotals[warehouse].add(dOnHand, dReserved)
	if l.whTotals[warehouse].IsZero() {
		delete(l.whTotals, warehouse)
	}
	l.grandTotals = l.grandTotals.add(dOnHand, dReserved)
}

func (l *Ledger) listLocked(sku string) []Record {
	whs := l.bySKU[sku]
	out := make([]Record, 0, len(whs))
	for wh := range whs {
		out = append(out, l.records[recordKey{sku: sku, warehouse: wh}])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseCode < out[j].WarehouseCode })
	return out
}
