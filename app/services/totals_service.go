package services

import (
	"errors"
	"math"

	"PosPrint/app/models"
)

// ErrNegativeDiscount is returned when a discount descriptor carries a
// negative value. It is rejected rather than silently negated.
var ErrNegativeDiscount = errors.New("discount value cannot be negative")

// MoneyEpsilon is the tolerance used when comparing computed amounts
const MoneyEpsilon = 0.005

// ComputeTotals computes the money breakdown for a bill from its lines,
// an optional order-level discount and the configured tax mode.
//
// Tax is computed per line so heterogeneous rates are respected: each line
// absorbs its proportional share of the discount, and its tax contribution
// is taxable × rate/100. In split mode the grand tax total is halved into
// CGST and SGST.
func ComputeTotals(lines []models.OrderLine, discount *models.Discount, mode models.TaxMode) (*models.OrderTotals, error) {
	totals := &models.OrderTotals{}

	for i := range lines {
		totals.Subtotal += lines[i].LineTotal()
	}

	if discount != nil {
		if discount.Value < 0 {
			return nil, ErrNegativeDiscount
		}
		switch discount.Kind {
		case models.DiscountFixed:
			// A fixed discount larger than the subtotal would drive the
			// taxable amount negative; clamp to the subtotal instead.
			totals.Discount = math.Min(discount.Value, totals.Subtotal)
		case models.DiscountPercent:
			totals.Discount = totals.Subtotal * discount.Value / 100
		}
		totals.DiscountReason = discount.Reason
	}

	if mode != models.TaxModeDisabled {
		var taxTotal float64
		for i := range lines {
			lineTotal := lines[i].LineTotal()
			var share float64
			if totals.Subtotal > 0 {
				share = lineTotal / totals.Subtotal * totals.Discount
			}
			taxable := lineTotal - share
			taxTotal += taxable * lines[i].TaxRate / 100
		}
		totals.TaxTotal = taxTotal

		switch mode {
		case models.TaxModeSplit:
			half := taxTotal / 2
			totals.Taxes = []models.TaxLine{
				{Name: "CGST", Amount: half},
				{Name: "SGST", Amount: half},
			}
		case models.TaxModeSingle:
			totals.Taxes = []models.TaxLine{
				{Name: "GST", Amount: taxTotal},
			}
		}
	}

	unrounded := totals.Subtotal - totals.Discount + totals.TaxTotal
	totals.FinalAmount = math.Round(unrounded)
	totals.RoundOff = totals.FinalAmount - unrounded

	return totals, nil
}

// DiscountShare returns one line's proportional share of the order discount.
// Exposed separately so itemized bills can show per-line discounts.
func DiscountShare(line *models.OrderLine, subtotal, discountAmount float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	return line.LineTotal() / subtotal * discountAmount
}
