package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, recs ...Record) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t, recs...)
	r := chi.NewRouter()
	r.Route("/inventory", NewHandler(nil, svc).MountRoutes)
	return r, svc
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerReserveAndRelease(t *testing.T) {
	h, _ := newTestRouter(t,
		Record{SKU: "A", WarehouseCode: "WH1", OnHand: 10},
		Record{SKU: "A", WarehouseCode: "WH2", OnHand: 5},
	)

	rec := doRequest(h, http.MethodPost, "/inventory/a/reserve", `{"qty": 12}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp allocationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "A", resp.SKU)
	require.Equal(t, 3, resp.Available)
	require.Len(t, resp.Allocations, 2)

	rec = doRequest(h, http.MethodPost, "/inventory/A/release", `{"qty": 5, "preferred_warehouse": "wh2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []Allocation{{WarehouseCode: "WH2", Qty: 2}, {WarehouseCode: "WH1", Qty: 3}}, resp.Allocations)
	require.Equal(t, 8, resp.Available)
}

func TestHandlerReserveInsufficientIsConflict(t *testing.T) {
	h, _ := newTestRouter(t, Record{SKU: "A", WarehouseCode: "WH1", OnHand: 2})
	rec := doRequest(h, http.MethodPost, "/inventory/A/reserve", `{"qty": 3}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerRejectsInvalidPayload(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doRequest(h, http.MethodPost, "/inventory/A/reserve", `{"qty": 0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/inventory/A/reserve", `{"qty": 1, "bogus": true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUpsertReplaceAndTotals(t *testing.T) {
	h, svc := newTestRouter(t)

	rec := doRequest(h, http.MethodPut, "/inventory/A/wh1", `{"on_hand": 4, "reserved": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(h, http.MethodPut, "/inventory/B", `{"records": [{"warehouse_code": "WH1", "on_hand": 6}, {"warehouse_code": "WH2", "on_hand": 2}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	require.Equal(t, 8, sum.TotalOnHand)

	rec = doRequest(h, http.MethodGet, "/inventory/totals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var totals TotalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.Equal(t, Totals{OnHand: 12, Reserved: 1}, totals.Overall)
	require.Equal(t, Totals{OnHand: 10, Reserved: 1}, totals.ByWarehouse["WH1"])

	rec = doRequest(h, http.MethodGet, "/inventory/B/available", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"sku":"B","available":8}`, rec.Body.String())

	rec = doRequest(h, http.MethodDelete, "/inventory/warehouses/WH1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"skus":["A","B"]}`, rec.Body.String())
	require.Equal(t, Totals{OnHand: 2}, svc.Ledger().Totals())
}

func TestHandlerRemoveMissingIsNotFound(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doRequest(h, http.MethodDelete, "/inventory/A/WH1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
