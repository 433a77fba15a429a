package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/warehouse-ops/internal/platform/httpx"
	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// IdempotencyHeader lets clients retry order creation safely.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "sales.orders"

// Handler exposes sales orders and drafts over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	idem    *shared.IdempotencyStore
}

// NewHandler constructs the sales handler. idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idem: idem}
}

// ============================================================================
// ORDERS
// ============================================================================

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant := q.Get("tenant_id")
	if tenant == "" {
		tenant = shared.TenantFromContext(r.Context())
	}
	orders, err := h.service.ListSalesOrders(r.Context(), ListFilter{
		From:     q.Get("from"),
		To:       q.Get("to"),
		TenantID: tenant,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.PaginationFromQuery(q, len(orders))
	start, end := page.Bounds()
	httpx.JSON(w, http.StatusOK, orderListResponse{Orders: orders[start:end], Pagination: page})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			if !errors.Is(err, shared.ErrIdempotencyConflict) {
				h.logger.Error("idempotency check failed", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
	}

	order, err := h.service.CreateSalesOrder(r.Context(), req.input(shared.TenantFromContext(r.Context())))
	if err != nil {
		if key != "" && h.idem != nil {
			if delErr := h.idem.Delete(r.Context(), key, idempotencyModule); delErr != nil {
				h.logger.Warn("idempotency rollback failed", slog.Any("error", delErr))
			}
		}
		h.logFailure("create order failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetSalesOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CancelSalesOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure("cancel order failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.DeleteSalesOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure("delete order failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) RecordShipment(w http.ResponseWriter, r *http.Request) {
	var req shipmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var shippedAt time.Time
	if req.ShippedAt != "" {
		t, ok := parseBusinessTime(req.ShippedAt)
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: invalid shipped_at %q", ErrValidation, req.ShippedAt))
			return
		}
		shippedAt = t
	}
	result, err := h.service.RecordSalesShipment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"), req.Qty, shippedAt)
	if err != nil {
		h.logFailure("record shipment failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) NextNumber(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		tenant = shared.TenantFromContext(r.Context())
	}
	nc, alloc := h.service.PeekNextOrderNumber(r.Context(), tenant, r.URL.Query().Get("order_date"))
	httpx.JSON(w, http.StatusOK, nextNumberResponse{NumberContext: nc, NumberAllocation: alloc})
}

// ============================================================================
// DRAFTS
// ============================================================================

func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.ListDrafts(r.Context(), shared.TenantFromContext(r.Context())))
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := h.service.SaveDraft(r.Context(), req.input(shared.TenantFromContext(r.Context())))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, draft)
}

func (h *Handler) ShowDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := h.service.UpdateDraft(r.Context(), chi.URLParam(r, "id"), req.input(shared.TenantFromContext(r.Context())))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.DeleteDraft(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.SubmitDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure("submit draft failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// logFailure logs unexpected errors; caller mistakes are only answered.
func (h *Handler) logFailure(msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
		return
	}
	h.logger.Debug(msg, slog.Any("error", err))
}

func decodeAndValidate(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(target)
}
