// Package pricing computes order totals. All arithmetic is decimal so that
// repeated additions never drift the way float money does.
package pricing

import "github.com/shopspring/decimal"

var (
	taxRate          = decimal.RequireFromString("0.18") // flat GST
	freeShippingFrom = decimal.NewFromInt(1000)
	flatShipping     = decimal.NewFromInt(100)
)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Calculate prices a set of lines. Discount stays zero until a coupon engine
// plugs in.
func Calculate(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	tax := subtotal.Mul(taxRate).Round(2)

	shipping := flatShipping
	if subtotal.GreaterThanOrEqual(freeShippingFrom) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		DiscountAmount: discount,
		TotalAmount:    subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}
