package services

import (
	"math"
	"testing"

	"PosPrint/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(name string, qty int, price, taxRate float64) models.OrderLine {
	return models.OrderLine{Name: name, Quantity: qty, UnitPrice: price, TaxRate: taxRate}
}

func TestComputeTotalsSplitTax(t *testing.T) {
	lines := []models.OrderLine{line("Paneer Tikka", 2, 100, 5)}

	totals, err := ComputeTotals(lines, nil, models.TaxModeSplit)
	require.NoError(t, err)

	assert.InDelta(t, 200.0, totals.Subtotal, MoneyEpsilon)
	assert.InDelta(t, 10.0, totals.TaxTotal, MoneyEpsilon)
	require.Len(t, totals.Taxes, 2)
	assert.Equal(t, "CGST", totals.Taxes[0].Name)
	assert.Equal(t, "SGST", totals.Taxes[1].Name)
	assert.InDelta(t, 5.0, totals.Taxes[0].Amount, MoneyEpsilon)
	assert.InDelta(t, 5.0, totals.Taxes[1].Amount, MoneyEpsilon)
	assert.InDelta(t, 210.0, totals.FinalAmount, MoneyEpsilon)
	assert.InDelta(t, 0.0, totals.RoundOff, MoneyEpsilon)
}

func TestComputeTotalsPercentDiscountBeforeTax(t *testing.T) {
	lines := []models.OrderLine{line("Paneer Tikka", 2, 100, 5)}
	discount := &models.Discount{Kind: models.DiscountPercent, Value: 10, Reason: "loyal customer"}

	totals, err := ComputeTotals(lines, discount, models.TaxModeSplit)
	require.NoError(t, err)

	assert.InDelta(t, 200.0, totals.Subtotal, MoneyEpsilon)
	assert.InDelta(t, 20.0, totals.Discount, MoneyEpsilon)
	assert.Equal(t, "loyal customer", totals.DiscountReason)
	// Tax applies to the discounted amount
	assert.InDelta(t, 9.0, totals.TaxTotal, MoneyEpsilon)
	assert.InDelta(t, 189.0, totals.FinalAmount, MoneyEpsilon)
}

func TestComputeTotalsSingleTaxLine(t *testing.T) {
	lines := []models.OrderLine{line("Coffee", 1, 80, 5)}

	totals, err := ComputeTotals(lines, nil, models.TaxModeSingle)
	require.NoError(t, err)

	require.Len(t, totals.Taxes, 1)
	assert.Equal(t, "GST", totals.Taxes[0].Name)
	assert.InDelta(t, 4.0, totals.Taxes[0].Amount, MoneyEpsilon)
}

func TestComputeTotalsDisabledTax(t *testing.T) {
	lines := []models.OrderLine{line("Coffee", 1, 80, 5)}

	totals, err := ComputeTotals(lines, nil, models.TaxModeDisabled)
	require.NoError(t, err)

	assert.Empty(t, totals.Taxes)
	assert.Zero(t, totals.TaxTotal)
	assert.InDelta(t, 80.0, totals.FinalAmount, MoneyEpsilon)
}

func TestComputeTotalsHeterogeneousRates(t *testing.T) {
	lines := []models.OrderLine{
		line("Paneer Tikka", 1, 100, 5),
		line("Beer", 1, 300, 18),
	}
	discount := &models.Discount{Kind: models.DiscountFixed, Value: 40}

	totals, err := ComputeTotals(lines, discount, models.TaxModeSingle)
	require.NoError(t, err)

	// Discount distributes proportionally: 10 to the 100 line, 30 to the 300 line
	wantTax := (100-10.0)*0.05 + (300-30.0)*0.18
	assert.InDelta(t, wantTax, totals.TaxTotal, MoneyEpsilon)

	// Per-line shares sum back to the full discount
	share1 := DiscountShare(&lines[0], totals.Subtotal, totals.Discount)
	share2 := DiscountShare(&lines[1], totals.Subtotal, totals.Discount)
	assert.InDelta(t, totals.Discount, share1+share2, MoneyEpsilon)
}

func TestComputeTotalsRoundOff(t *testing.T) {
	lines := []models.OrderLine{line("Soup", 1, 99.5, 5)}

	totals, err := ComputeTotals(lines, nil, models.TaxModeSingle)
	require.NoError(t, err)

	unrounded := totals.Subtotal - totals.Discount + totals.TaxTotal
	assert.InDelta(t, math.Round(unrounded), totals.FinalAmount, 1e-9)
	assert.InDelta(t, totals.FinalAmount-unrounded, totals.RoundOff, 1e-9)
	assert.LessOrEqual(t, math.Abs(totals.RoundOff), 0.5)
}

func TestComputeTotalsCustomPriceLine(t *testing.T) {
	custom := models.OrderLine{Name: "Chef special", Quantity: 2, UnitPrice: 150, CustomPrice: true, TaxRate: 5}

	totals, err := ComputeTotals([]models.OrderLine{custom}, nil, models.TaxModeDisabled)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, totals.Subtotal, MoneyEpsilon)
}

func TestComputeTotalsNegativeDiscount(t *testing.T) {
	lines := []models.OrderLine{line("Coffee", 1, 80, 5)}
	discount := &models.Discount{Kind: models.DiscountFixed, Value: -10}

	_, err := ComputeTotals(lines, discount, models.TaxModeSingle)
	assert.ErrorIs(t, err, ErrNegativeDiscount)
}

func TestComputeTotalsFixedDiscountClampedToSubtotal(t *testing.T) {
	lines := []models.OrderLine{line("Coffee", 1, 80, 5)}
	discount := &models.Discount{Kind: models.DiscountFixed, Value: 500}

	totals, err := ComputeTotals(lines, discount, models.TaxModeSingle)
	require.NoError(t, err)

	assert.InDelta(t, 80.0, totals.Discount, MoneyEpsilon)
	assert.Zero(t, totals.TaxTotal)
	assert.Zero(t, totals.FinalAmount)
}

func TestComputeTotalsEmptyOrder(t *testing.T) {
	discount := &models.Discount{Kind: models.DiscountPercent, Value: 10}

	totals, err := ComputeTotals(nil, discount, models.TaxModeSplit)
	require.NoError(t, err)

	assert.Zero(t, totals.Subtotal)
	assert.Zero(t, totals.Discount)
	assert.Zero(t, totals.TaxTotal)
	assert.Zero(t, totals.FinalAmount)
}
