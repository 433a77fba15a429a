package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
)

// SaveDraft stores a new draft. Drafts are not validated beyond SKU
// normalisation and never touch stock or numbering.
func (s *Service) SaveDraft(ctx context.Context, input CreateSalesOrderInput) (*Draft, error) {
	now := s.now().UTC()
	draft := &Draft{
		ID:        uuid.NewString(),
		TenantID:  s.tenant(input.TenantID),
		CreatedAt: now,
	}
	applyDraftInput(draft, input)
	draft.UpdatedAt = now
	s.store.putDraft(draft)
	return draft.clone(), nil
}

// UpdateDraft replaces the content of a draft. The tenant is kept unless input names one.
func (s *Service) UpdateDraft(ctx context.Context, id string, input CreateSalesOrderInput) (*Draft, error) {
	now := s.now().UTC()
	draft, ok := s.store.updateDraft(id, func(d *Draft) {
		if tenant := strings.TrimSpace(input.TenantID); tenant != "" {
			d.TenantID = tenant
		}
		applyDraftInput(d, input)
		d.UpdatedAt = now
	})
	if !ok {
		return nil, fmt.Errorf("sales: draft %s: %w", id, ErrNotFound)
	}
	return draft, nil
}

// GetDraft returns one draft.
func (s *Service) GetDraft(ctx context.Context, id string) (*Draft, error) {
	draft, ok := s.store.draft(id)
	if !ok {
		return nil, fmt.Errorf("sales: draft %s: %w", id, ErrNotFound)
	}
	return draft, nil
}

// ListDrafts returns drafts of tenantID, or of every tenant when empty,
// most recently updated first.
func (s *Service) ListDrafts(ctx context.Context, tenantID string) []Draft {
	return s.store.listDrafts(strings.TrimSpace(tenantID))
}

// DeleteDraft removes a draft.
func (s *Service) DeleteDraft(ctx context.Context, id string) (*Draft, error) {
	draft, ok := s.store.deleteDraft(id)
	if !ok {
		return nil, fmt.Errorf("sales: draft %s: %w", id, ErrNotFound)
	}
	return draft, nil
}

// SubmitDraft turns a draft into a sales order and removes the draft once
// the order exists. A failed order leaves the draft in place.
func (s *Service) SubmitDraft(ctx context.Context, id string) (*SalesOrder, error) {
	draft, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.CreateSalesOrder(ctx, draft.Input())
	if err != nil {
		return nil, err
	}
	s.store.deleteDraft(id)
	return order, nil
}

func applyDraftInput(d *Draft, input CreateSalesOrderInput) {
	d.CustomerID = strings.TrimSpace(input.CustomerID)
	d.CustomerName = strings.TrimSpace(input.CustomerName)
	d.OrderNumber = NormalizeOrderNumber(input.OrderNumber)
	d.OrderDate = strings.TrimSpace(input.OrderDate)
	d.Memo = strings.TrimSpace(input.Memo)
	d.PromisedDate = strings.TrimSpace(input.PromisedDate)
	d.Lines = make([]LineInput, 0, len(input.Lines))
	for _, line := range input.Lines {
		line.SKU = inventory.NormalizeSKU(line.SKU)
		d.Lines = append(d.Lines, line)
	}
	d.Subtotal, d.TaxAmount, d.TotalAmount = draftTotals(d.Lines)
}
