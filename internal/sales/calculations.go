package sales

import (
	"math"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
)

// CalculateLineTotals prices one line: discount applies to the gross amount,
// tax to the discounted amount.
func CalculateLineTotals(quantity, unitPrice, discountPercent, taxPercent float64) (discountAmount, taxAmount, lineTotal float64) {
	grossAmount := quantity * unitPrice
	discountAmount = grossAmount * (discountPercent / 100)
	netAmount := grossAmount - discountAmount
	taxAmount = netAmount * (taxPercent / 100)
	lineTotal = netAmount + taxAmount
	return
}

// orderTotals returns subtotal (net of discounts), tax and grand total.
func orderTotals(lines []SalesOrderLine) (subtotal, tax, total float64) {
	for _, line := range lines {
		subtotal += line.LineTotal - line.TaxAmount
		tax += line.TaxAmount
		total += line.LineTotal
	}
	return roundCents(subtotal), roundCents(tax), roundCents(total)
}

func draftTotals(lines []LineInput) (subtotal, tax, total float64) {
	for _, line := range lines {
		_, lineTax, lineTotal := CalculateLineTotals(float64(inventory.NormalizeQty(line.OrderedQty)), line.UnitPrice, line.DiscountPercent, line.TaxPercent)
		subtotal += lineTotal - lineTax
		tax += lineTax
		total += lineTotal
	}
	return roundCents(subtotal), roundCents(tax), roundCents(total)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
