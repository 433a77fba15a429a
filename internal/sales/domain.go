package sales

import (
	"time"

	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// LineStatus is derived from ordered and shipped quantities.
type LineStatus string

const (
	LineStatusOpen    LineStatus = "open"
	LineStatusPartial LineStatus = "partial"
	LineStatusClosed  LineStatus = "closed"
)

// OrderStatus is derived from the line statuses unless the order is canceled.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPacked   OrderStatus = "packed"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// LineStatusFor derives the status of a line.
func LineStatusFor(ordered, shipped int) LineStatus {
	switch {
	case ordered > 0 && shipped >= ordered:
		return LineStatusClosed
	case shipped > 0 && shipped < ordered:
		return LineStatusPartial
	default:
		return LineStatusOpen
	}
}

// OrderStatusFor derives the status of a live order from its lines: closed
// when every line is closed, packed when any line is partial, open otherwise.
// An order with no lines is open.
func OrderStatusFor(lines []SalesOrderLine) OrderStatus {
	if len(lines) == 0 {
		return OrderStatusOpen
	}
	allClosed := true
	for _, line := range lines {
		status := LineStatusFor(line.OrderedQty, line.ShippedQty)
		if status == LineStatusPartial {
			return OrderStatusPacked
		}
		if status != LineStatusClosed {
			allClosed = false
		}
	}
	if allClosed {
		return OrderStatusClosed
	}
	return OrderStatusOpen
}

// SalesOrderLine is one SKU demand inside an order.
type SalesOrderLine struct {
	ID              string     `json:"id"`
	SalesOrderID    string     `json:"sales_order_id"`
	SKU             string     `json:"sku"`
	OrderedQty      int        `json:"ordered_qty"`
	ShippedQty      int        `json:"shipped_qty"`
	UnitPrice       float64    `json:"unit_price"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  float64    `json:"discount_amount"`
	TaxPercent      float64    `json:"tax_percent"`
	TaxAmount       float64    `json:"tax_amount"`
	LineTotal       float64    `json:"line_total"`
	Status          LineStatus `json:"status"`
	LastShippedAt   *time.Time `json:"last_shipped_at,omitempty"`
}

// Unshipped returns the quantity still held in reservation for the line.
func (l SalesOrderLine) Unshipped() int {
	return max(0, l.OrderedQty-l.ShippedQty)
}

// SalesOrder is a confirmed order whose lines hold stock reservations.
type SalesOrder struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	CustomerID    string           `json:"customer_id"`
	CustomerName  string           `json:"customer_name,omitempty"`
	Status        OrderStatus      `json:"status"`
	OrderNumber   string           `json:"order_number"`
	OrderDate     string           `json:"order_date"`
	OrderSequence int              `json:"order_sequence"`
	Memo          string           `json:"memo,omitempty"`
	PromisedDate  string           `json:"promised_date,omitempty"`
	Lines         []SalesOrderLine `json:"lines"`
	Subtotal      float64          `json:"subtotal"`
	TaxAmount     float64          `json:"tax_amount"`
	TotalAmount   float64          `json:"total_amount"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	CanceledAt    *time.Time       `json:"canceled_at,omitempty"`
}

// Canceled reports whether the order was canceled.
func (o *SalesOrder) Canceled() bool {
	return o.CanceledAt != nil
}

func (o *SalesOrder) refreshStatus() {
	for i := range o.Lines {
		o.Lines[i].Status = LineStatusFor(o.Lines[i].OrderedQty, o.Lines[i].ShippedQty)
	}
	if o.Canceled() {
		o.Status = OrderStatusCanceled
		return
	}
	o.Status = OrderStatusFor(o.Lines)
}

func (o *SalesOrder) clone() *SalesOrder {
	cp := *o
	cp.Lines = make([]SalesOrderLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}

// LineInput is a requested order line.
type LineInput struct {
	SKU             string  `json:"sku"`
	OrderedQty      float64 `json:"ordered_qty"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	TaxPercent      float64 `json:"tax_percent"`
}

// CreateSalesOrderInput carries an order request. Empty optional fields fall
// back to the default tenant, an allocated order number and today's business date.
type CreateSalesOrderInput struct {
	TenantID     string
	CustomerID   string
	CustomerName string
	OrderNumber  string
	OrderDate    string
	Memo         string
	PromisedDate string
	Lines        []LineInput
}

// ShipmentResult describes the outcome of a shipment posting.
type ShipmentResult struct {
	Order              *SalesOrder    `json:"order"`
	PreviousShippedQty int            `json:"previous_shipped_qty"`
	Line               SalesOrderLine `json:"line"`
}

// ListFilter narrows ListSalesOrders. From and To are inclusive YYYY-MM-DD
// bounds; empty fields do not filter.
type ListFilter struct {
	From     string
	To       string
	TenantID string
}

// Draft is a saved order form. It never reserves stock or consumes a number.
type Draft struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	CustomerID   string      `json:"customer_id,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	OrderNumber  string      `json:"order_number,omitempty"`
	OrderDate    string      `json:"order_date,omitempty"`
	Memo         string      `json:"memo,omitempty"`
	PromisedDate string      `json:"promised_date,omitempty"`
	Lines        []LineInput `json:"lines"`
	Subtotal     float64     `json:"subtotal"`
	TaxAmount    float64     `json:"tax_amount"`
	TotalAmount  float64     `json:"total_amount"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (d *Draft) clone() *Draft {
	cp := *d
	cp.Lines = make([]LineInput, len(d.Lines))
	copy(cp.Lines, d.Lines)
	return &cp
}

// Input converts the draft back into an order request.
func (d *Draft) Input() CreateSalesOrderInput {
	lines := make([]LineInput, len(d.Lines))
	copy(lines, d.Lines)
	return CreateSalesOrderInput{
		TenantID:     d.TenantID,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		OrderNumber:  d.OrderNumber,
		OrderDate:    d.OrderDate,
		Memo:         d.Memo,
		PromisedDate: d.PromisedDate,
		Lines:        lines,
	}
}

var (
	// ErrNotFound indicates an unknown order, line or draft.
	ErrNotFound = shared.Kind(shared.ErrNotFound, "sales: not found")
	// ErrValidation indicates invalid order input.
	ErrValidation = shared.Kind(shared.ErrValidation, "sales: validation failed")
	// ErrDuplicateOrderNumber indicates an explicit number already used by the tenant.
	ErrDuplicateOrderNumber = shared.Kind(shared.ErrConflict, "sales: duplicate order number")
	// ErrOrderCanceled blocks shipments against canceled orders.
	ErrOrderCanceled = shared.Kind(shared.ErrValidation, "sales: order canceled")
)
