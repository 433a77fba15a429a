package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

func TestStatusFor(t *testing.T) {
	stock := shared.Kind(shared.ErrConflict, "inventory: insufficient stock")
	cases := map[string]struct {
		err  error
		want int
	}{
		"not found":   {fmt.Errorf("order x: %w", shared.ErrNotFound), http.StatusNotFound},
		"validation":  {ErrBadRequest, http.StatusBadRequest},
		"conflict":    {fmt.Errorf("reserve: %w", stock), http.StatusConflict},
		"idempotency": {shared.ErrIdempotencyConflict, http.StatusConflict},
		"internal":    {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("ledger exploded"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Empty(t, body.Detail)
	require.Equal(t, "Internal Error", body.Title)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":1,"extra":true}`))
	var target struct {
		Qty int `json:"qty"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateReportsFields(t *testing.T) {
	type payload struct {
		SKU string `validate:"required"`
		Qty int    `validate:"gte=0"`
	}
	err := Validate(payload{Qty: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "payload.SKU (required)")
	require.Contains(t, err.Error(), "payload.Qty (gte)")
	require.NoError(t, Validate(payload{SKU: "A"}))
}
