package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateSingleLine(t *testing.T) {
	got := Calculate([]Line{{UnitPrice: d("500"), Quantity: 3}})

	assert.True(t, got.Subtotal.Equal(d("1500")), "subtotal %s", got.Subtotal)
	assert.True(t, got.TaxAmount.Equal(d("270")), "tax %s", got.TaxAmount)
	assert.True(t, got.ShippingAmount.Equal(d("0")), "shipping %s", got.ShippingAmount)
	assert.True(t, got.DiscountAmount.Equal(d("0")))
	assert.True(t, got.TotalAmount.Equal(d("1770")), "total %s", got.TotalAmount)
}

func TestCalculateShippingThreshold(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		shipping string
	}{
		{"below threshold", "999.99", "100"},
		{"at threshold", "1000", "0"},
		{"above threshold", "1000.01", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate([]Line{{UnitPrice: d(tc.subtotal), Quantity: 1}})
			assert.True(t, got.ShippingAmount.Equal(d(tc.shipping)),
				"shipping %s, want %s", got.ShippingAmount, tc.shipping)
		})
	}
}

func TestCalculateTaxRounding(t *testing.T) {
	// 33.33 * 0.18 = 5.9994 -> 6.00 at 2dp
	got := Calculate([]Line{{UnitPrice: d("33.33"), Quantity: 1}})
	assert.True(t, got.TaxAmount.Equal(d("6.00")), "tax %s", got.TaxAmount)
	assert.Equal(t, int32(-2), got.TaxAmount.Exponent())
}

func TestCalculateTotalIdentity(t *testing.T) {
	lines := []Line{
		{UnitPrice: d("19.99"), Quantity: 3},
		{UnitPrice: d("0.01"), Quantity: 7},
		{UnitPrice: d("249.50"), Quantity: 2},
	}
	got := Calculate(lines)

	sum := got.Subtotal.Add(got.TaxAmount).Add(got.ShippingAmount).Sub(got.DiscountAmount)
	require.True(t, got.TotalAmount.Equal(sum), "total %s != %s", got.TotalAmount, sum)
}

func TestCalculateEmpty(t *testing.T) {
	got := Calculate(nil)
	assert.True(t, got.Subtotal.Equal(decimal.Zero))
	// an empty order still sits below the free-shipping threshold
	assert.True(t, got.ShippingAmount.Equal(d("100")))
	assert.True(t, got.TotalAmount.Equal(d("100")))
}
