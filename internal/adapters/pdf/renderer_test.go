package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/test/helpers"
)

func TestRenderer_Render(t *testing.T) {
	inv := helpers.CreateTestInvoice()
	inv.Notes = "Thank you for your business"
	branding := &domain.Branding{
		CompanyName:    "Globex Ltd",
		PrimaryColor:   "#1e40af",
		SecondaryColor: "#64748b",
		InvoiceFooter:  "Payment due within 30 days",
	}

	r := NewRenderer()
	r.compress = false

	data, err := r.Render(inv, branding)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "%PDF-"))

	pages, err := ExtractText(data)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	text := pages[0]
	assert.Contains(t, text, "Globex Ltd")
	assert.Contains(t, text, inv.InvoiceNumber)
	assert.Contains(t, text, "Acme Corp")
	assert.Contains(t, text, "Widget")
	assert.Contains(t, text, inv.Amount.StringFixed(2))
	assert.Contains(t, text, "Payment due within 30 days")
	assert.Contains(t, text, "Thank you for your business")
}

func TestRenderer_DefaultsBranding(t *testing.T) {
	r := NewRenderer()
	r.compress = false

	data, err := r.Render(helpers.CreateTestInvoice(), nil)
	require.NoError(t, err)

	pages, err := ExtractText(data)
	require.NoError(t, err)
	require.NotEmpty(t, pages)
	assert.Contains(t, pages[0], domain.DefaultBranding().CompanyName)
}

func TestRenderer_NilInvoice(t *testing.T) {
	_, err := NewRenderer().Render(nil, nil)
	assert.Error(t, err)
}

func TestRenderer_ManyItemsPaginate(t *testing.T) {
	inv := helpers.CreateTestInvoice()
	item := inv.Items[0]
	for i := 0; i < 80; i++ {
		inv.Items = append(inv.Items, item)
	}
	inv.CalculateTotals()

	data, err := NewRenderer().Render(inv, nil)
	require.NoError(t, err)

	pages, err := ExtractText(data)
	require.NoError(t, err)
	assert.Greater(t, len(pages), 1)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want rgb
	}{
		{"#ffffff", rgb{255, 255, 255}},
		{"#1e40af", rgb{30, 64, 175}},
		{"#f00", rgb{255, 0, 0}},
		{"1e40af", rgb{30, 64, 175}},
		{"#zzzzzz", rgb{}},
		{"", rgb{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHexColor(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
