package benchmarks

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/ammerola/erp-admin/internal/adapters/pdf"
	"github.com/ammerola/erp-admin/internal/adapters/sheets"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/listquery"
)

func BenchmarkDocumentTotals(b *testing.B) {
	for _, n := range []int{1, 10, 100, 1000} {
		items := createLineItems(n)
		b.Run(fmt.Sprintf("items_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = domain.ComputeDocumentTotals(items)
			}
		})
	}
}

func BenchmarkListReducer(b *testing.B) {
	actions := []listquery.Action{
		listquery.SetFilter{Field: listquery.FieldSearch, Value: "acme"},
		listquery.SetLimit{Limit: 25},
		listquery.ToggleSort{Column: "company"},
		listquery.FetchSucceeded{Total: 1000},
		listquery.SetPage{Page: 7},
		listquery.ToggleSort{Column: "company"},
		listquery.ResetFilters{},
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := listquery.NewState()
		for _, a := range actions {
			s = listquery.Reduce(s, a)
		}
		_ = s.Query()
	}
}

func BenchmarkLeadSheets(b *testing.B) {
	leads := createLeads(500)

	b.Run("WriteCSV", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := sheets.WriteLeadsCSV(io.Discard, leads); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("WriteXLSX", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := sheets.WriteLeadsXLSX(io.Discard, leads); err != nil {
				b.Fatal(err)
			}
		}
	})

	var workbook bytes.Buffer
	if err := sheets.WriteLeadsXLSX(&workbook, leads); err != nil {
		b.Fatal(err)
	}
	b.Run("ReadXLSX", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			parsed, _, err := sheets.ReadLeadsXLSX(workbook.Bytes())
			if err != nil {
				b.Fatal(err)
			}
			if len(parsed) != len(leads) {
				b.Fatalf("parsed %d leads, want %d", len(parsed), len(leads))
			}
		}
	})
}

func BenchmarkInvoicePDF(b *testing.B) {
	renderer := pdf.NewRenderer()
	branding := domain.DefaultBranding()

	for _, n := range []int{5, 50} {
		inv := createInvoice(n)
		b.Run(fmt.Sprintf("items_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := renderer.Render(inv, branding); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
