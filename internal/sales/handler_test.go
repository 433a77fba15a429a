package sales

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t, inventory.Record{SKU: "A", WarehouseCode: "WH1", OnHand: 10})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	r.Use(shared.TenantMiddleware)
	r.Route("/sales", NewHandler(nil, f.svc, shared.NewIdempotencyStore(client, 0)).MountRoutes)
	return r, f
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const orderBody = `{"customer_id":"c1","order_date":"2024-05-15","lines":[{"sku":"a","ordered_qty":4,"unit_price":2.5}]}`

func TestHandlerCreateOrderUsesTenantHeader(t *testing.T) {
	h, f := newTestRouter(t)

	rec := send(h, http.MethodPost, "/sales/orders", orderBody, map[string]string{shared.TenantHeader: "t1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order SalesOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, "t1", order.TenantID)
	require.Equal(t, "SO-20240515-001", order.OrderNumber)
	require.Equal(t, 6, f.stock.Available("A"))

	rec = send(h, http.MethodGet, "/sales/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(h, http.MethodGet, "/sales/orders?from=2024-05-15&to=2024-05-15", "", map[string]string{shared.TenantHeader: "t1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var list orderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Orders, 1)
	require.Equal(t, 1, list.Pagination.Total)

	rec = send(h, http.MethodGet, "/sales/orders?page=2", "", map[string]string{shared.TenantHeader: "t1"})
	require.Equal(t, http.StatusOK, rec.Code)
	list = orderListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Empty(t, list.Orders)
	require.Equal(t, 2, list.Pagination.Page)

	rec = send(h, http.MethodGet, "/sales/orders?from=someday", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateOrderIdempotencyKey(t *testing.T) {
	h, f := newTestRouter(t)
	headers := map[string]string{IdempotencyHeader: "req-1"}

	rec := send(h, http.MethodPost, "/sales/orders", orderBody, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = send(h, http.MethodPost, "/sales/orders", orderBody, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 6, f.stock.Available("A"), "replayed request must not reserve again")
}

func TestHandlerFailedCreateFreesIdempotencyKey(t *testing.T) {
	h, _ := newTestRouter(t)
	headers := map[string]string{IdempotencyHeader: "req-2"}
	tooMuch := `{"customer_id":"c1","lines":[{"sku":"A","ordered_qty":50}]}`

	rec := send(h, http.MethodPost, "/sales/orders", tooMuch, headers)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = send(h, http.MethodPost, "/sales/orders", orderBody, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandlerCreateOrderValidation(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := send(h, http.MethodPost, "/sales/orders", `{"lines":[{"sku":"A","ordered_qty":1}]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "CustomerID")

	rec = send(h, http.MethodPost, "/sales/orders", `{"customer_id":"c1","lines":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerShipmentCancelAndDelete(t *testing.T) {
	h, f := newTestRouter(t)
	rec := send(h, http.MethodPost, "/sales/orders", orderBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order SalesOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = send(h, http.MethodPost, "/sales/orders/"+order.ID+"/lines/"+order.Lines[0].ID+"/shipments", `{"qty":1,"shipped_at":"2024-05-16"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var shipment ShipmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	require.Equal(t, 1, shipment.Line.ShippedQty)
	require.Equal(t, OrderStatusPacked, shipment.Order.Status)

	rec = send(h, http.MethodPost, "/sales/orders/"+order.ID+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 9, f.stock.Available("A"))

	rec = send(h, http.MethodPost, "/sales/orders/"+order.ID+"/lines/"+order.Lines[0].ID+"/shipments", `{"qty":1}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(h, http.MethodDelete, "/sales/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(h, http.MethodDelete, "/sales/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerNextNumber(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := send(h, http.MethodGet, "/sales/orders/next-number?order_date=2024-05-15", "", map[string]string{shared.TenantHeader: "t9"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"date_key":"20240515","order_date":"2024-05-15","tenant_id":"t9","sequence":1,"order_number":"SO-20240515-001"}`, rec.Body.String())
}

func TestHandlerDrafts(t *testing.T) {
	h, f := newTestRouter(t)
	headers := map[string]string{shared.TenantHeader: "t1"}

	rec := send(h, http.MethodPost, "/sales/drafts", `{"lines":[{"sku":"A","ordered_qty":2}]}`, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))

	rec = send(h, http.MethodPut, "/sales/drafts/"+draft.ID, `{"customer_id":"c1","order_date":"2024-05-15","lines":[{"sku":"A","ordered_qty":3}]}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(h, http.MethodGet, "/sales/drafts", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var drafts []Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drafts))
	require.Len(t, drafts, 1)
	require.Equal(t, "c1", drafts[0].CustomerID)

	rec = send(h, http.MethodPost, "/sales/drafts/"+draft.ID+"/submit", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, 7, f.stock.Available("A"))

	rec = send(h, http.MethodGet, "/sales/drafts/"+draft.ID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = send(h, http.MethodDelete, "/sales/drafts/"+draft.ID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
