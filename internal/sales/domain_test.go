package sales

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineStatusFor(t *testing.T) {
	require.Equal(t, LineStatusOpen, LineStatusFor(10, 0))
	require.Equal(t, LineStatusPartial, LineStatusFor(10, 4))
	require.Equal(t, LineStatusClosed, LineStatusFor(10, 10))
	require.Equal(t, LineStatusClosed, LineStatusFor(10, 12))
	require.Equal(t, LineStatusOpen, LineStatusFor(0, 0))
}

func TestOrderStatusFor(t *testing.T) {
	line := func(ordered, shipped int) SalesOrderLine {
		return SalesOrderLine{OrderedQty: ordered, ShippedQty: shipped}
	}
	require.Equal(t, OrderStatusOpen, OrderStatusFor([]SalesOrderLine{line(5, 0), line(3, 0)}))
	require.Equal(t, OrderStatusOpen, OrderStatusFor([]SalesOrderLine{line(5, 5), line(3, 0)}))
	require.Equal(t, OrderStatusPacked, OrderStatusFor([]SalesOrderLine{line(5, 5), line(3, 1)}))
	require.Equal(t, OrderStatusClosed, OrderStatusFor([]SalesOrderLine{line(5, 5), line(3, 3)}))
	require.Equal(t, OrderStatusOpen, OrderStatusFor(nil))
}

func TestCanceledOrderKeepsCanceledStatus(t *testing.T) {
	order := &SalesOrder{Lines: []SalesOrderLine{{OrderedQty: 2, ShippedQty: 2}}}
	order.refreshStatus()
	require.Equal(t, OrderStatusClosed, order.Status)

	at := order.CreatedAt
	order.CanceledAt = &at
	order.refreshStatus()
	require.Equal(t, OrderStatusCanceled, order.Status)
	require.Equal(t, LineStatusClosed, order.Lines[0].Status)
}

func TestCalculateLineTotals(t *testing.T) {
	discount, tax, total := CalculateLineTotals(4, 250, 10, 11)
	require.InDelta(t, 100.0, discount, 0.0001)
	require.InDelta(t, 99.0, tax, 0.0001)
	require.InDelta(t, 999.0, total, 0.0001)
}
