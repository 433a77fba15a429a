package sales

import "github.com/odyssey-erp/warehouse-ops/internal/shared"

type orderLineRequest struct {
	SKU             string  `json:"sku" validate:"required,max=64"`
	OrderedQty      float64 `json:"ordered_qty" validate:"gte=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64 `json:"tax_percent" validate:"gte=0,lte=100"`
}

type createOrderRequest struct {
	TenantID     string             `json:"tenant_id,omitempty" validate:"max=64"`
	CustomerID   string             `json:"customer_id" validate:"required,max=64"`
	CustomerName string             `json:"customer_name,omitempty" validate:"max=200"`
	OrderNumber  string             `json:"order_number,omitempty" validate:"max=64"`
	OrderDate    string             `json:"order_date,omitempty"`
	Memo         string             `json:"memo,omitempty" validate:"max=1000"`
	PromisedDate string             `json:"promised_date,omitempty"`
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// draftRequest shares the order shape without the order requirements.
type draftRequest struct {
	TenantID     string             `json:"tenant_id,omitempty" validate:"max=64"`
	CustomerID   string             `json:"customer_id,omitempty" validate:"max=64"`
	CustomerName string             `json:"customer_name,omitempty" validate:"max=200"`
	OrderNumber  string             `json:"order_number,omitempty" validate:"max=64"`
	OrderDate    string             `json:"order_date,omitempty"`
	Memo         string             `json:"memo,omitempty" validate:"max=1000"`
	PromisedDate string             `json:"promised_date,omitempty"`
	Lines        []orderLineRequest `json:"lines" validate:"dive"`
}

type shipmentRequest struct {
	Qty       float64 `json:"qty" validate:"gt=0"`
	ShippedAt string  `json:"shipped_at,omitempty"`
}

type orderListResponse struct {
	Orders     []SalesOrder      `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

type nextNumberResponse struct {
	NumberContext
	NumberAllocation
}

func (r createOrderRequest) input(tenant string) CreateSalesOrderInput {
	if r.TenantID != "" {
		tenant = r.TenantID
	}
	return CreateSalesOrderInput{
		TenantID:     tenant,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		OrderNumber:  r.OrderNumber,
		OrderDate:    r.OrderDate,
		Memo:         r.Memo,
		PromisedDate: r.PromisedDate,
		Lines:        lineInputs(r.Lines),
	}
}

func (r draftRequest) input(tenant string) CreateSalesOrderInput {
	if r.TenantID != "" {
		tenant = r.TenantID
	}
	return CreateSalesOrderInput{
		TenantID:     tenant,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		OrderNumber:  r.OrderNumber,
		OrderDate:    r.OrderDate,
		Memo:         r.Memo,
		PromisedDate: r.PromisedDate,
		Lines:        lineInputs(r.Lines),
	}
}

func lineInputs(in []orderLineRequest) []LineInput {
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, LineInput{
			SKU:             l.SKU,
			OrderedQty:      l.OrderedQty,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxPercent:      l.TaxPercent,
		})
	}
	return out
}
