package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice      = errors.New("unit price must not be negative")
	ErrDiscountOutOfRange = errors.New("discount percentage must be between 0 and 100")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

// Line is the priced result for a single cart or order line.
type Line struct {
	UnitDiscounted float64
	Total          float64
}

var hundred = decimal.NewFromInt(100)

// ComputeLine applies the product discount to the unit price and extends it
// by quantity. Both values are rounded to 2 decimal places independently;
// the discounted unit price is rounded before the extension so that line
// totals never drift from what the customer sees per unit.
func ComputeLine(unitPrice float64, discountPct, quantity int) (Line, error) {
	if unitPrice < 0 {
		return Line{}, ErrNegativePrice
	}
	if discountPct < 0 || discountPct > 100 {
		return Line{}, ErrDiscountOutOfRange
	}
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	unit := decimal.NewFromFloat(unitPrice)
	factor := hundred.Sub(decimal.NewFromInt(int64(discountPct))).Div(hundred)

	unitDiscounted := unit.Mul(factor).Round(2)
	total := unitDiscounted.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	return Line{
		UnitDiscounted: unitDiscounted.InexactFloat64(),
		Total:          total.InexactFloat64(),
	}, nil
}

// Subtotal sums already-rounded line totals without reintroducing float noise.
func Subtotal(lineTotals ...float64) float64 {
	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(decimal.NewFromFloat(t))
	}
	return sum.InexactFloat64()
}

// MinorUnits converts a currency amount to integer minor units (fils, cents)
// for the payment processor.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
