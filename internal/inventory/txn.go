package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Txn is a reservation unit of work over a fixed set of locked SKUs. Rollback
// restores every record touched through the Txn to its prior reserved value.
type Txn interface {
	Available(sku string) int
	Reserve(sku string, qty int) ([]Allocation, error)
	Commit()
	Rollback()
}

type txnStep struct {
	sku    string
	allocs []Allocation
}

type txn struct {
	svc    *Service
	ctx    context.Context
	locked map[string]struct{}
	unlock func()

	mu    sync.Mutex
	steps []txnStep
	done  bool
}

func (t *txn) Available(sku string) int {
	return t.svc.Available(sku)
}

func (t *txn) Reserve(sku string, qty int) ([]Allocation, error) {
	sku = NormalizeSKU(sku)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, fmt.Errorf("inventory: transaction already finished")
	}
	if _, ok := t.locked[sku]; !ok {
		return nil, fmt.Errorf("inventory: sku %s not locked by transaction", sku)
	}
	allocs, err := t.svc.reserveLocked(sku, qty)
	if err != nil {
		t.svc.observeReserveError(err)
		return nil, err
	}
	if len(allocs) > 0 {
		t.steps = append(t.steps, txnStep{sku: sku, allocs: allocs})
	}
	return allocs, nil
}

// Commit keeps every reservation and releases the SKU locks.
func (t *txn) Commit() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	steps := t.steps
	t.unlock()
	t.mu.Unlock()

	for _, step := range steps {
		t.svc.observe("reserve", ResultOK)
		t.svc.afterReserve(t.ctx, step.sku, step.allocs)
	}
}

// Rollback undoes reservations in reverse order and releases the SKU locks.
func (t *txn) Rollback() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	for i := len(t.steps) - 1; i >= 0; i-- {
		t.svc.restoreLocked(t.steps[i].sku, t.steps[i].allocs)
	}
	undone := len(t.steps)
	t.steps = nil
	t.unlock()
	t.mu.Unlock()

	if undone > 0 {
		t.svc.observe("reserve", ResultRolledBack)
	}
}
