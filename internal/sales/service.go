package sales

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// DefaultTenantID is used when neither the caller nor the config names a tenant.
const DefaultTenantID = "default"

// Order lifecycle actions reported to metrics and audit.
const (
	ActionCreated  = "created"
	ActionRejected = "rejected"
	ActionCanceled = "canceled"
	ActionDeleted  = "deleted"
	ActionShipped  = "shipped"
)

// Stock is the slice of the inventory service order handling depends on.
type Stock interface {
	Begin(ctx context.Context, skus ...string) inventory.Txn
	Release(ctx context.Context, sku string, qty int, preferredWarehouse string) []inventory.Allocation
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsRecorder counts order lifecycle actions.
type MetricsRecorder interface {
	ObserveSalesOrder(action string)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultTenant string
	Logger        *slog.Logger
	Metrics       MetricsRecorder
	Clock         func() time.Time
}

// Service runs the sales order transaction against the inventory ledger.
type Service struct {
	store         *Store
	stock         Stock
	numbers       *Sequencer
	audit         AuditPort
	integration   IntegrationHandler
	metrics       MetricsRecorder
	logger        *slog.Logger
	defaultTenant string
	now           func() time.Time
}

// NewService builds Service. A nil store or sequencer gets an in-memory default.
func NewService(store *Store, stock Stock, numbers *Sequencer, audit AuditPort, cfg ServiceConfig, integration IntegrationHandler) *Service {
	if store == nil {
		store = NewStore()
	}
	if numbers == nil {
		numbers = NewSequencer(store)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tenant := strings.TrimSpace(cfg.DefaultTenant)
	if tenant == "" {
		tenant = DefaultTenantID
	}
	return &Service{
		store:         store,
		stock:         stock,
		numbers:       numbers,
		audit:         audit,
		integration:   integration,
		metrics:       cfg.Metrics,
		logger:        logger,
		defaultTenant: tenant,
		now:           clock,
	}
}

// Sequencer exposes the order number sequencer.
func (s *Service) Sequencer() *Sequencer {
	return s.numbers
}

// ============================================================================
// ORDER TRANSACTION
// ============================================================================

// CreateSalesOrder validates input, reserves stock for every line and stores
// the order. Availability of every SKU is checked before anything is
// reserved, and a failure after the first reservation restores the ledger.
func (s *Service) CreateSalesOrder(ctx context.Context, input CreateSalesOrderInput) (*SalesOrder, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id required", ErrValidation)
	}
	lines, err := normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line with positive quantity required", ErrValidation)
	}

	demand := make(map[string]int, len(lines))
	for _, line := range lines {
		demand[line.SKU] += line.OrderedQty
	}
	skus := make([]string, 0, len(demand))
	for sku := range demand {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	now := s.now()
	nc := NumberContext{
		OrderDateContext: resolveOrderDateAt(input.OrderDate, now),
		TenantID:         s.tenant(input.TenantID),
	}

	tx := s.stock.Begin(ctx, skus...)
	for _, sku := range skus {
		if available := tx.Available(sku); demand[sku] > available {
			tx.Rollback()
			s.observe(ActionRejected)
			return nil, fmt.Errorf("%w: sku %s requested %d available %d", inventory.ErrInsufficientStock, sku, demand[sku], available)
		}
	}

	number, seq, err := s.claimNumber(nc, input.OrderNumber)
	if err != nil {
		tx.Rollback()
		s.observe(ActionRejected)
		return nil, err
	}

	for _, line := range lines {
		if _, err := tx.Reserve(line.SKU, line.OrderedQty); err != nil {
			tx.Rollback()
			s.numbers.Unmark(nc.TenantID, number)
			s.observe(ActionRejected)
			s.logger.Warn("sales order reservation rolled back",
				slog.String("order_number", number),
				slog.String("sku", line.SKU),
				slog.Any("error", err))
			return nil, fmt.Errorf("sales: reserve %s: %w", line.SKU, err)
		}
	}

	order := &SalesOrder{
		ID:            uuid.NewString(),
		TenantID:      nc.TenantID,
		CustomerID:    customerID,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		OrderNumber:   number,
		OrderDate:     nc.OrderDate,
		OrderSequence: seq,
		Memo:          strings.TrimSpace(input.Memo),
		PromisedDate:  strings.TrimSpace(input.PromisedDate),
		Lines:         lines,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	for i := range order.Lines {
		order.Lines[i].ID = uuid.NewString()
		order.Lines[i].SalesOrderID = order.ID
	}
	order.Subtotal, order.TaxAmount, order.TotalAmount = orderTotals(order.Lines)
	order.refreshStatus()
	s.store.insertOrder(order)
	tx.Commit()

	s.observe(ActionCreated)
	s.record(ctx, "sales:order_created", order, map[string]any{
		"order_number": order.OrderNumber,
		"lines":        len(order.Lines),
		"total":        order.TotalAmount,
	})
	if s.integration != nil {
		if err := s.integration.HandleOrderCreated(ctx, newOrderEvent(order, lineEvents(order.Lines), now.UTC())); err != nil {
			s.logger.Warn("order created event", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}
	return order.clone(), nil
}

// CancelSalesOrder marks the order canceled and releases the unshipped
// remainder of every line. Canceling twice releases nothing more.
func (s *Service) CancelSalesOrder(ctx context.Context, id string) (*SalesOrder, error) {
	var (
		toRelease []SalesOrderLine
		already   bool
	)
	now := s.now().UTC()
	order, err := s.store.updateOrder(id, func(o *SalesOrder) error {
		if o.Canceled() {
			already = true
			return nil
		}
		o.CanceledAt = &now
		o.UpdatedAt = now
		o.refreshStatus()
		toRelease = append(toRelease, o.Lines...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sales: cancel order %s: %w", id, err)
	}
	if already {
		return order, nil
	}

	released := s.releaseLines(ctx, toRelease)
	s.observe(ActionCanceled)
	s.record(ctx, "sales:order_canceled", order, map[string]any{"released": released})
	if s.integration != nil {
		if err := s.integration.HandleOrderCanceled(ctx, newOrderEvent(order, released, now)); err != nil {
			s.logger.Warn("order canceled event", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}
	return order, nil
}

// DeleteSalesOrder removes the order, releases its unshipped remainder unless
// it was already canceled, and frees the order number.
func (s *Service) DeleteSalesOrder(ctx context.Context, id string) (*SalesOrder, error) {
	order, ok := s.store.deleteOrder(id)
	if !ok {
		return nil, fmt.Errorf("sales: delete order %s: %w", id, ErrNotFound)
	}
	var released []OrderLineEvent
	if !order.Canceled() {
		released = s.releaseLines(ctx, order.Lines)
	}
	s.numbers.Unmark(order.TenantID, order.OrderNumber)

	s.observe(ActionDeleted)
	s.record(ctx, "sales:order_deleted", order, map[string]any{"released": released})
	if s.integration != nil {
		if err := s.integration.HandleOrderDeleted(ctx, newOrderEvent(order, released, s.now().UTC())); err != nil {
			s.logger.Warn("order deleted event", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}
	return order, nil
}

// RecordSalesShipment adds qty to the shipped quantity of a line, capped at
// the ordered quantity, and re-derives statuses. The ledger is left as is.
func (s *Service) RecordSalesShipment(ctx context.Context, orderID, lineID string, qty float64, shippedAt time.Time) (*ShipmentResult, error) {
	shipQty := inventory.NormalizeQty(qty)
	if shipQty <= 0 {
		return nil, fmt.Errorf("%w: shipment quantity must be positive", ErrValidation)
	}
	if shippedAt.IsZero() {
		shippedAt = s.now()
	}
	shippedAt = shippedAt.UTC()

	var (
		previous int
		shipped  SalesOrderLine
	)
	order, err := s.store.updateOrder(orderID, func(o *SalesOrder) error {
		if o.Canceled() {
			return fmt.Errorf("%w: %s", ErrOrderCanceled, o.OrderNumber)
		}
		idx := -1
		for i := range o.Lines {
			if o.Lines[i].ID == lineID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		line := &o.Lines[idx]
		previous = line.ShippedQty
		line.ShippedQty = min(line.OrderedQty, line.ShippedQty+shipQty)
		line.LastShippedAt = &shippedAt
		o.UpdatedAt = s.now().UTC()
		o.refreshStatus()
		shipped = *line
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sales: record shipment on order %s: %w", orderID, err)
	}

	s.observe(ActionShipped)
	s.record(ctx, "sales:order_shipped", order, map[string]any{
		"line_id":  lineID,
		"previous": previous,
		"shipped":  shipped.ShippedQty,
	})
	return &ShipmentResult{Order: order, PreviousShippedQty: previous, Line: shipped}, nil
}

// GetSalesOrder returns one order.
func (s *Service) GetSalesOrder(ctx context.Context, id string) (*SalesOrder, error) {
	order, ok := s.store.order(id)
	if !ok {
		return nil, fmt.Errorf("sales: order %s: %w", id, ErrNotFound)
	}
	return order, nil
}

// ListSalesOrders returns orders within an inclusive order date range,
// optionally restricted to one tenant. Bounds must be valid dates.
func (s *Service) ListSalesOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	var from, to string
	if strings.TrimSpace(filter.From) != "" {
		dc, err := ParseOrderDate(filter.From)
		if err != nil {
			return nil, fmt.Errorf("sales: list from: %w", err)
		}
		from = dc.OrderDate
	}
	if strings.TrimSpace(filter.To) != "" {
		dc, err := ParseOrderDate(filter.To)
		if err != nil {
			return nil, fmt.Errorf("sales: list to: %w", err)
		}
		to = dc.OrderDate
	}
	tenant := strings.TrimSpace(filter.TenantID)
	return s.store.listOrders(func(o *SalesOrder) bool {
		if tenant != "" && o.TenantID != tenant {
			return false
		}
		if from != "" && o.OrderDate < from {
			return false
		}
		if to != "" && o.OrderDate > to {
			return false
		}
		return true
	}), nil
}

// PeekNextOrderNumber previews the number the next order for tenant and date
// would receive.
func (s *Service) PeekNextOrderNumber(ctx context.Context, tenantID, orderDate string) (NumberContext, NumberAllocation) {
	nc := NumberContext{
		OrderDateContext: resolveOrderDateAt(orderDate, s.now()),
		TenantID:         s.tenant(tenantID),
	}
	return nc, s.numbers.Peek(nc)
}

// claimNumber marks the explicit number used or allocates a fresh one. The
// returned sequence is zero for explicit numbers outside the house format.
func (s *Service) claimNumber(nc NumberContext, explicit string) (string, int, error) {
	explicit = NormalizeOrderNumber(explicit)
	if explicit != "" {
		if !s.numbers.MarkUsed(nc.TenantID, explicit) {
			return "", 0, fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, explicit)
		}
		seq, _ := ParseOrderNumber(explicit, nc.DateKey)
		return explicit, seq, nil
	}
	for {
		alloc := s.numbers.Allocate(nc)
		if s.numbers.MarkUsed(nc.TenantID, alloc.OrderNumber) {
			return alloc.OrderNumber, alloc.Sequence, nil
		}
	}
}

func (s *Service) releaseLines(ctx context.Context, lines []SalesOrderLine) []OrderLineEvent {
	var released []OrderLineEvent
	for _, line := range lines {
		qty := line.Unshipped()
		if qty <= 0 {
			continue
		}
		allocs := s.stock.Release(ctx, line.SKU, qty, "")
		got := 0
		for _, a := range allocs {
			got += a.Qty
		}
		if got < qty {
			s.logger.Warn("release short of unshipped quantity",
				slog.String("sku", line.SKU),
				slog.Int("requested", qty),
				slog.Int("released", got))
		}
		released = append(released, OrderLineEvent{SKU: line.SKU, Qty: got})
	}
	return released
}

func (s *Service) tenant(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultTenant
}

func (s *Service) observe(action string) {
	if s.metrics != nil {
		s.metrics.ObserveSalesOrder(action)
	}
}

func (s *Service) record(ctx context.Context, action string, order *SalesOrder, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: order.TenantID,
		Action:   action,
		Entity:   "sales_order",
		EntityID: order.ID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// normalizeLines upper-cases SKUs, rounds quantities and drops lines without
// a positive quantity.
func normalizeLines(in []LineInput) ([]SalesOrderLine, error) {
	lines := make([]SalesOrderLine, 0, len(in))
	for i, raw := range in {
		qty := inventory.NormalizeQty(raw.OrderedQty)
		if qty <= 0 {
			continue
		}
		sku := inventory.NormalizeSKU(raw.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: line %d: sku required", ErrValidation, i+1)
		}
		discount, tax, total := CalculateLineTotals(float64(qty), raw.UnitPrice, raw.DiscountPercent, raw.TaxPercent)
		lines = append(lines, SalesOrderLine{
			SKU:             sku,
			OrderedQty:      qty,
			UnitPrice:       raw.UnitPrice,
			DiscountPercent: raw.DiscountPercent,
			DiscountAmount:  roundCents(discount),
			TaxPercent:      raw.TaxPercent,
			TaxAmount:       roundCents(tax),
			LineTotal:       roundCents(total),
			Status:          LineStatusOpen,
		})
	}
	return lines, nil
}

func lineEvents(lines []SalesOrderLine) []OrderLineEvent {
	out := make([]OrderLineEvent, 0, len(lines))
	for _, line := range lines {
		out = append(out, OrderLineEvent{SKU: line.SKU, Qty: line.OrderedQty})
	}
	return out
}
