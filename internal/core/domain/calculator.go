// internal/core/domain/calculator.go
package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision money is rounded to when persisted or rendered
const MoneyPlaces = 2

// LineItem is one billable row on an invoice
type LineItem struct {
	ItemName    string          `json:"item_name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// DocumentTotals are the aggregate figures shown under an invoice
type DocumentTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	// LineTotalSum is the sum of clamped line totals. It differs from Total
	// only when at least one line was clamped at zero.
	LineTotalSum decimal.Decimal `json:"line_total_sum"`
}

// Diverges reports whether the summed line totals disagree with Total
func (t DocumentTotals) Diverges() bool {
	return !t.Total.Equal(t.LineTotalSum)
}

// ComputeLineTotal returns max(0, quantity*price - discount + tax)
func ComputeLineTotal(item LineItem) decimal.Decimal {
	total := item.Quantity.Mul(item.Price).Sub(item.Discount).Add(item.Tax)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ComputeDocumentTotals aggregates raw subtotal, discount and tax across the
// items and clamps only the final figure.
func ComputeDocumentTotals(items []LineItem) DocumentTotals {
	totals := DocumentTotals{
		Subtotal:     decimal.Zero,
		Discount:     decimal.Zero,
		Tax:          decimal.Zero,
		Total:        decimal.Zero,
		LineTotalSum: decimal.Zero,
	}

	for _, item := range items {
		totals.Subtotal = totals.Subtotal.Add(item.Quantity.Mul(item.Price))
		totals.Discount = totals.Discount.Add(item.Discount)
		totals.Tax = totals.Tax.Add(item.Tax)
		totals.LineTotalSum = totals.LineTotalSum.Add(ComputeLineTotal(item))
	}

	total := totals.Subtotal.Sub(totals.Discount).Add(totals.Tax)
	if total.IsPositive() {
		totals.Total = total
	}

	return totals
}

// RoundMoney rounds half away from zero to MoneyPlaces
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// CoerceAmount converts loosely typed form input into a decimal.
// Anything that is not a finite number becomes zero.
func CoerceAmount(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt32(n)
	case int64:
		return decimal.NewFromInt(n)
	case float32:
		return coerceFloat(float64(n))
	case float64:
		return coerceFloat(n)
	case json.Number:
		return coerceString(n.String())
	case string:
		return coerceString(n)
	case bool:
		if n {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

func coerceFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func coerceString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LineItemFromForm builds a line item from an editable form row
func LineItemFromForm(row map[string]any) LineItem {
	item := LineItem{
		Quantity: CoerceAmount(row["quantity"]),
		Price:    CoerceAmount(row["price"]),
		Discount: CoerceAmount(row["discount"]),
		Tax:      CoerceAmount(row["tax"]),
	}
	if name, ok := row["item_name"].(string); ok {
		item.ItemName = strings.TrimSpace(name)
	}
	if desc, ok := row["description"].(string); ok {
		item.Description = desc
	}
	item.Total = ComputeLineTotal(item)
	return item
}
