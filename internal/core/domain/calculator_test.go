package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		item     domain.LineItem
		expected string
	}{
		{
			name:     "quantity_times_price_less_discount_plus_tax",
			item:     domain.LineItem{Quantity: d("2"), Price: d("10"), Discount: d("5"), Tax: d("1")},
			expected: "16",
		},
		{
			name:     "clamps_negative_result_to_zero",
			item:     domain.LineItem{Quantity: d("1"), Price: d("3"), Discount: d("10")},
			expected: "0",
		},
		{
			name:     "negative_price_clamped",
			item:     domain.LineItem{Quantity: d("1"), Price: d("-5")},
			expected: "0",
		},
		{
			name:     "zero_value_item",
			item:     domain.LineItem{},
			expected: "0",
		},
		{
			name:     "exact_decimal_arithmetic",
			item:     domain.LineItem{Quantity: d("3"), Price: d("0.1")},
			expected: "0.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ComputeLineTotal(tt.item)
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestComputeDocumentTotals(t *testing.T) {
	t.Run("single_item_example", func(t *testing.T) {
		totals := domain.ComputeDocumentTotals([]domain.LineItem{
			{Quantity: d("2"), Price: d("10"), Discount: d("5"), Tax: d("1")},
		})

		assert.True(t, d("20").Equal(totals.Subtotal))
		assert.True(t, d("5").Equal(totals.Discount))
		assert.True(t, d("1").Equal(totals.Tax))
		assert.True(t, d("16").Equal(totals.Total))
		assert.False(t, totals.Diverges())
	})

	t.Run("negative_price_gives_zero_total", func(t *testing.T) {
		totals := domain.ComputeDocumentTotals([]domain.LineItem{
			{Quantity: d("1"), Price: d("-5")},
		})

		assert.True(t, d("-5").Equal(totals.Subtotal))
		assert.True(t, totals.Total.IsZero())
	})

	t.Run("empty_list", func(t *testing.T) {
		totals := domain.ComputeDocumentTotals(nil)
		assert.True(t, totals.Total.IsZero())
		assert.True(t, totals.Subtotal.IsZero())
	})

	t.Run("document_total_is_independent_of_line_clamping", func(t *testing.T) {
		items := []domain.LineItem{
			{Quantity: d("1"), Price: d("10"), Discount: d("15")},
			{Quantity: d("1"), Price: d("20")},
		}
		totals := domain.ComputeDocumentTotals(items)

		// 30 - 15 = 15 while the clamped lines sum to 0 + 20
		assert.True(t, d("15").Equal(totals.Total))
		assert.True(t, d("20").Equal(totals.LineTotalSum))
		assert.True(t, totals.Diverges())
	})

	t.Run("matches_formula_for_generated_lists", func(t *testing.T) {
		for n := 0; n < 25; n++ {
			items := make([]domain.LineItem, 0, n)
			sumQP, sumD, sumT := decimal.Zero, decimal.Zero, decimal.Zero
			for i := 0; i < n; i++ {
				item := domain.LineItem{
					Quantity: decimal.NewFromInt(int64(i%4 + 1)),
					Price:    decimal.NewFromInt(int64(i*7%13 - 3)),
					Discount: decimal.NewFromInt(int64(i * 3 % 11)),
					Tax:      decimal.NewFromInt(int64(i % 5)),
				}
				items = append(items, item)
				sumQP = sumQP.Add(item.Quantity.Mul(item.Price))
				sumD = sumD.Add(item.Discount)
				sumT = sumT.Add(item.Tax)
			}

			want := sumQP.Sub(sumD).Add(sumT)
			if want.IsNegative() {
				want = decimal.Zero
			}
			got := domain.ComputeDocumentTotals(items).Total
			assert.True(t, want.Equal(got), "n=%d want %s got %s", n, want, got)
		}
	})
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "0"},
		{"empty_string", "", "0"},
		{"whitespace", "   ", "0"},
		{"numeric_string", "12.50", "12.5"},
		{"padded_numeric_string", " 7 ", "7"},
		{"garbage_string", "abc", "0"},
		{"int", 4, "4"},
		{"int64", int64(9), "9"},
		{"float", 2.25, "2.25"},
		{"nan", math.NaN(), "0"},
		{"inf", math.Inf(1), "0"},
		{"json_number", json.Number("3.5"), "3.5"},
		{"bad_json_number", json.Number("x"), "0"},
		{"decimal", d("1.1"), "1.1"},
		{"true", true, "1"},
		{"unsupported_type", struct{}{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.CoerceAmount(tt.input)
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestLineItemFromForm(t *testing.T) {
	item := domain.LineItemFromForm(map[string]any{
		"item_name": "  Consulting ",
		"quantity":  "2",
		"price":     10.0,
		"discount":  "oops",
		"tax":       nil,
	})

	assert.Equal(t, "Consulting", item.ItemName)
	assert.True(t, d("0").Equal(item.Discount))
	assert.True(t, d("20").Equal(item.Total))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "1.01", domain.RoundMoney(d("1.005")).String())
	assert.Equal(t, "-1.01", domain.RoundMoney(d("-1.005")).String())
	assert.Equal(t, "2", domain.RoundMoney(d("2.001")).String())
}
