// Package pricing computes sale totals from a cart and the active tax and
// loyalty configuration. It has no side effects and performs no rounding;
// display formatting belongs to whoever renders the numbers.
package pricing

import (
	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line. Sub-unit lines carry their bundle price and
// bundle quantity here, not base units.
type Line struct {
	Price decimal.Decimal
	Qty   int
}

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	PointsDiscount decimal.Decimal `json:"pointsDiscount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	PointsToEarn   int             `json:"pointsToEarn"`
}

// ComputeTotals prices a cart. discountPercent is expected in [0,100] and
// redeemPoints must not exceed the customer's balance; both are the caller's
// responsibility.
func ComputeTotals(lines []Line, discountPercent decimal.Decimal, tax domain.TaxSettings, loyalty domain.LoyaltySettings, redeemPoints int) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
	}

	discountAmount := subtotal.Mul(discountPercent).Div(hundred)

	pointsDiscount := decimal.Zero
	if loyalty.Enabled && redeemPoints > 0 {
		pointsDiscount = decimal.NewFromInt(int64(redeemPoints)).Mul(loyalty.PointValue)
	}

	net := subtotal.Sub(discountAmount).Sub(pointsDiscount)

	taxAmount := decimal.Zero
	total := net
	switch {
	case !tax.Enabled:
	case tax.IncludedInPrice:
		taxAmount = net.Sub(ExtractNet(net, tax.Rate))
	default:
		taxAmount = net.Mul(tax.Rate).Div(hundred)
		total = net.Add(taxAmount)
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		PointsDiscount: pointsDiscount,
		Tax:            taxAmount,
		Total:          total,
		PointsToEarn:   PointsFor(total, loyalty),
	}
}

// ExtractNet returns the pre-tax amount contained in a tax-inclusive gross.
func ExtractNet(gross decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	return gross.Div(decimal.NewFromInt(1).Add(ratePercent.Div(hundred)))
}

// PointsFor is floor(total × pointsPerUnit); nothing is earned on a
// non-positive total or with loyalty switched off.
func PointsFor(total decimal.Decimal, loyalty domain.LoyaltySettings) int {
	if !loyalty.Enabled || !total.IsPositive() {
		return 0
	}
	return int(total.Mul(loyalty.PointsPerUnit).Floor().IntPart())
}
