package sales

import (
	"context"
	"time"
)

// OrderLineEvent is the quantity of one SKU affected by an order event.
type OrderLineEvent struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// OrderEvent describes a sales order lifecycle change. For creation Lines
// carry the reserved quantities, for cancel and delete the released ones.
type OrderEvent struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	CustomerID  string           `json:"customer_id"`
	OrderNumber string           `json:"order_number"`
	OrderDate   string           `json:"order_date"`
	Status      OrderStatus      `json:"status"`
	TotalAmount float64          `json:"total_amount"`
	Lines       []OrderLineEvent `json:"lines"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// IntegrationHandler receives sales order events for downstream processing.
type IntegrationHandler interface {
	HandleOrderCreated(ctx context.Context, evt OrderEvent) error
	HandleOrderCanceled(ctx context.Context, evt OrderEvent) error
	HandleOrderDeleted(ctx context.Context, evt OrderEvent) error
}

func newOrderEvent(order *SalesOrder, lines []OrderLineEvent, at time.Time) OrderEvent {
	return OrderEvent{
		ID:          order.ID,
		TenantID:    order.TenantID,
		CustomerID:  order.CustomerID,
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Lines:       lines,
		OccurredAt:  at,
	}
}
