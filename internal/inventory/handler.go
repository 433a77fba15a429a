package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/warehouse-ops/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	totals  singleflight.Group
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/totals", h.handleTotals)
	r.Delete("/warehouses/{code}", h.handleClearWarehouse)
	r.Get("/{sku}", h.handleSummary)
	r.Put("/{sku}", h.handleReplace)
	r.Delete("/{sku}", h.handleClearSKU)
	r.Get("/{sku}/available", h.handleAvailable)
	r.Post("/{sku}/reserve", h.handleReserve)
	r.Post("/{sku}/release", h.handleRelease)
	r.Put("/{sku}/{warehouse}", h.handleUpsert)
	r.Delete("/{sku}/{warehouse}", h.handleRemove)
}

// TotalsResponse is the payload of the totals endpoint.
type TotalsResponse struct {
	Overall     Totals            `json:"overall"`
	ByWarehouse map[string]Totals `json:"by_warehouse"`
	BySKU       map[string]Totals `json:"by_sku"`
}

type recordRequest struct {
	WarehouseCode string `json:"warehouse_code" validate:"required,max=50"`
	OnHand        int    `json:"on_hand" validate:"gte=0"`
	Reserved      int    `json:"reserved" validate:"gte=0"`
}

type replaceRequest struct {
	Records []recordRequest `json:"records" validate:"dive"`
}

type upsertRequest struct {
	OnHand   int `json:"on_hand" validate:"gte=0"`
	Reserved int `json:"reserved" validate:"gte=0"`
}

type quantityRequest struct {
	Qty                float64 `json:"qty" validate:"gt=0"`
	PreferredWarehouse string  `json:"preferred_warehouse,omitempty" validate:"max=50"`
}

type allocationResponse struct {
	SKU         string       `json:"sku"`
	Qty         int          `json:"qty"`
	Allocations []Allocation `json:"allocations"`
	Available   int          `json:"available"`
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	v, _, _ := h.totals.Do("totals", func() (any, error) {
		ledger := h.service.Ledger()
		return TotalsResponse{
			Overall:     ledger.Totals(),
			ByWarehouse: ledger.TotalsByWarehouse(),
			BySKU:       ledger.TotalsBySKU(),
		}, nil
	})
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Summarize(chi.URLParam(r, "sku")))
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	sku := NormalizeSKU(chi.URLParam(r, "sku"))
	httpx.JSON(w, http.StatusOK, map[string]any{"sku": sku, "available": h.service.Available(sku)})
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sku := chi.URLParam(r, "sku")
	recs := make([]Record, 0, len(req.Records))
	for _, rec := range req.Records {
		recs = append(recs, Record{SKU: sku, WarehouseCode: rec.WarehouseCode, OnHand: rec.OnHand, Reserved: rec.Reserved})
	}
	if _, err := h.service.ReplaceForSKU(r.Context(), sku, recs); err != nil {
		h.logger.Error("replace inventory failed", slog.String("sku", sku), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Summarize(sku))
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Upsert(r.Context(), Record{
		SKU:           chi.URLParam(r, "sku"),
		WarehouseCode: chi.URLParam(r, "warehouse"),
		OnHand:        req.OnHand,
		Reserved:      req.Reserved,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Remove(r.Context(), chi.URLParam(r, "sku"), chi.URLParam(r, "warehouse"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleClearSKU(w http.ResponseWriter, r *http.Request) {
	n := h.service.ClearSKU(r.Context(), chi.URLParam(r, "sku"))
	httpx.JSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) handleClearWarehouse(w http.ResponseWriter, r *http.Request) {
	skus := h.service.ClearWarehouse(r.Context(), chi.URLParam(r, "code"))
	if skus == nil {
		skus = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"skus": skus})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sku := NormalizeSKU(chi.URLParam(r, "sku"))
	qty := NormalizeQty(req.Qty)
	allocs, err := h.service.Reserve(r.Context(), sku, qty)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, allocationResponse{SKU: sku, Qty: qty, Allocations: allocs, Available: h.service.Available(sku)})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sku := NormalizeSKU(chi.URLParam(r, "sku"))
	allocs := h.service.Release(r.Context(), sku, NormalizeQty(req.Qty), req.PreferredWarehouse)
	if allocs == nil {
		allocs = []Allocation{}
	}
	httpx.JSON(w, http.StatusOK, allocationResponse{SKU: sku, Qty: sumAllocations(allocs), Allocations: allocs, Available: h.service.Available(sku)})
}

func decodeAndValidate(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(target)
}
