package perf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/internal/app"
	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
)

func newServices(t testing.TB, onHand int) *app.Services {
	t.Helper()
	svc := app.Build(app.Deps{Config: &app.Config{DefaultTenant: "default", AppRequestTimeout: 5 * time.Second}})
	for _, wh := range []string{"WH1", "WH2", "WH3"} {
		_, err := svc.Inventory.Upsert(context.Background(), inventory.Record{SKU: "A", WarehouseCode: wh, OnHand: onHand})
		require.NoError(t, err)
	}
	return svc
}

func TestOrderCreationLatencyTarget(t *testing.T) {
	svc := newServices(t, 100000)
	const orders = 200
	samples := make([]time.Duration, 0, orders)
	body := `{"customer_id":"C1","order_date":"2024-05-15","lines":[{"sku":"A","ordered_qty":3,"unit_price":10}]}`
	for i := 0; i < orders; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sales/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		start := time.Now()
		svc.Router.ServeHTTP(rec, req)
		samples = append(samples, time.Since(start))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("order creation latency regression: p95=%s", p95)
	}
	require.Equal(t, 300000-3*orders, svc.Inventory.Available("A"))

	_, next := svc.Sales.PeekNextOrderNumber(context.Background(), "default", "2024-05-15")
	require.Equal(t, orders+1, next.Sequence)
}

func BenchmarkReserveRelease(b *testing.B) {
	svc := newServices(b, 1_000_000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Inventory.Reserve(ctx, "A", 5); err != nil {
			b.Fatal(err)
		}
		svc.Inventory.Release(ctx, "A", 5, "")
	}
}

func BenchmarkCreateSalesOrder(b *testing.B) {
	svc := newServices(b, 1_000_000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := svc.Sales.CreateSalesOrder(ctx, sales.CreateSalesOrderInput{
			TenantID:   fmt.Sprintf("bench-%d", i/900),
			CustomerID: "C1",
			OrderDate:  "2024-05-15",
			Lines:      []sales.LineInput{{SKU: "A", OrderedQty: 1}},
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
