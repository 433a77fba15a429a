package inventory

import (
	"errors"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// Record is the stock position of one SKU in one warehouse.
type Record struct {
	SKU           string `json:"sku"`
	WarehouseCode string `json:"warehouse_code"`
	OnHand        int    `json:"on_hand"`
	Reserved      int    `json:"reserved"`
}

// Available returns the unreserved quantity of the record.
func (r Record) Available() int {
	if r.OnHand <= r.Reserved {
		return 0
	}
	return r.OnHand - r.Reserved
}

// clamp enforces 0 <= Reserved <= OnHand.
func (r Record) clamp() Record {
	if r.OnHand < 0 {
		r.OnHand = 0
	}
	if r.Reserved < 0 {
		r.Reserved = 0
	}
	if r.Reserved > r.OnHand {
		r.Reserved = r.OnHand
	}
	return r
}

func (r Record) key() recordKey {
	return recordKey{sku: r.SKU, warehouse: r.WarehouseCode}
}

type recordKey struct {
	sku       string
	warehouse string
}

// Totals aggregates on-hand and reserved quantities.
type Totals struct {
	OnHand   int `json:"on_hand"`
	Reserved int `json:"reserved"`
}

// Available returns max(0, OnHand - Reserved).
func (t Totals) Available() int {
	if t.OnHand <= t.Reserved {
		return 0
	}
	return t.OnHand - t.Reserved
}

// IsZero reports whether both fields are zero.
func (t Totals) IsZero() bool {
	return t.OnHand == 0 && t.Reserved == 0
}

func (t Totals) add(onHand, reserved int) Totals {
	return Totals{OnHand: t.OnHand + onHand, Reserved: t.Reserved + reserved}
}

// Summary describes every record held for one SKU.
type Summary struct {
	SKU           string   `json:"sku"`
	TotalOnHand   int      `json:"total_on_hand"`
	TotalReserved int      `json:"total_reserved"`
	Items         []Record `json:"items"`
}

// Allocation is the quantity taken from or returned to one warehouse record.
type Allocation struct {
	WarehouseCode string `json:"warehouse_code"`
	Qty           int    `json:"qty"`
}

var (
	// ErrInsufficientStock indicates the requested quantity exceeds what is available.
	ErrInsufficientStock = shared.Kind(shared.ErrConflict, "inventory: insufficient stock")
	// ErrAllocationFailure signals the ledger could not place a quantity it reported as available.
	ErrAllocationFailure = errors.New("inventory: allocation failure")
	// ErrInvalidRecord indicates a record without SKU or warehouse.
	ErrInvalidRecord = shared.Kind(shared.ErrValidation, "inventory: sku and warehouse required")
)

// NormalizeSKU trims and upper-cases a SKU.
func NormalizeSKU(sku string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(sku))
}

// NormalizeWarehouse trims and upper-cases a warehouse code.
func NormalizeWarehouse(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// NormalizeQty rounds q to the nearest integer and clamps it at zero.
func NormalizeQty(q float64) int {
	if math.IsNaN(q) || q <= 0 {
		return 0
	}
	if q >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(q))
}
