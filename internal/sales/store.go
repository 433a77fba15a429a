package sales

import (
	"sort"
	"sync"
)

// Store keeps orders and drafts in process memory.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*SalesOrder
	drafts map[string]*Draft
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		orders: make(map[string]*SalesOrder),
		drafts: make(map[string]*Draft),
	}
}

// MaxSequence implements SequenceSource.
func (s *Store) MaxSequence(tenantID, orderDate string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for _, order := range s.orders {
		if order.TenantID == tenantID && order.OrderDate == orderDate && order.OrderSequence > highest {
			highest = order.OrderSequence
		}
	}
	return highest
}

func (s *Store) insertOrder(order *SalesOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.clone()
}

func (s *Store) order(id string) (*SalesOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	return order.clone(), true
}

// updateOrder runs fn on the stored order under the write lock. Changes are
// kept only when fn succeeds.
func (s *Store) updateOrder(id string, fn func(*SalesOrder) error) (*SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.orders[id] = next
	return next.clone(), nil
}

func (s *Store) deleteOrder(id string) (*SalesOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	delete(s.orders, id)
	return order, true
}

// listOrders returns matching orders, newest business date first.
func (s *Store) listOrders(match func(*SalesOrder) bool) []SalesOrder {
	s.mu.RLock()
	out := make([]SalesOrder, 0, len(s.orders))
	for _, order := range s.orders {
		if match(order) {
			out = append(out, *order.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderDate != out[j].OrderDate {
			return out[i].OrderDate > out[j].OrderDate
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderNumber > out[j].OrderNumber
	})
	return out
}

func (s *Store) putDraft(draft *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draft.ID] = draft.clone()
}

func (s *Store) draft(id string) (*Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[id]
	if !ok {
		return nil, false
	}
	return draft.clone(), true
}

func (s *Store) deleteDraft(id string) (*Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return nil, false
	}
	delete(s.drafts, id)
	return draft, true
}

func (s *Store) listDrafts(tenantID string) []Draft {
	s.mu.RLock()
	out := make([]Draft, 0, len(s.drafts))
	for _, draft := range s.drafts {
		if tenantID == "" || draft.TenantID == tenantID {
			out = append(out, *draft.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) updateDraft(id string, fn func(*Draft)) (*Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.drafts[id]
	if !ok {
		return nil, false
	}
	next := current.clone()
	fn(next)
	s.drafts[id] = next
	return next.clone(), true
}
