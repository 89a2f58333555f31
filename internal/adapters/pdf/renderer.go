// Package pdf renders invoices to PDF and reads text back out of PDFs.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const (
	pageMargin = 15.0
	lineHeight = 7.0
	dateLayout = "Jan 2, 2006"
)

// column widths in mm for the item table, summing to the printable width
var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"Item", 70, "L"},
	{"Qty", 20, "R"},
	{"Price", 25, "R"},
	{"Discount", 25, "R"},
	{"Tax", 20, "R"},
	{"Total", 20, "R"},
}

// Renderer draws invoices on A4 pages with gofpdf
type Renderer struct {
	compress bool
}

var _ ports.InvoiceRenderer = (*Renderer)(nil)

// NewRenderer creates an invoice renderer
func NewRenderer() *Renderer {
	return &Renderer{compress: true}
}

// Render produces the PDF document for inv styled with branding
func (r *Renderer) Render(inv *domain.Invoice, branding *domain.Branding) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("render: nil invoice")
	}
	if branding == nil {
		branding = domain.DefaultBranding()
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(r.compress)
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, 20)
	doc.SetTitle(inv.InvoiceNumber, true)
	doc.SetCreator(branding.CompanyName, true)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	primary := parseHexColor(branding.PrimaryColor)
	secondary := parseHexColor(branding.SecondaryColor)

	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(secondary.r, secondary.g, secondary.b)
		footer := branding.InvoiceFooter
		if footer == "" {
			footer = branding.CompanyName
		}
		doc.CellFormat(0, 10, tr(footer), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "R", false, 0, "")
	})
	doc.AliasNbPages("")
	doc.AddPage()

	// Header
	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(primary.r, primary.g, primary.b)
	doc.CellFormat(0, 10, tr(branding.CompanyName), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 14)
	doc.SetTextColor(0, 0, 0)
	doc.CellFormat(0, 8, "INVOICE "+tr(inv.InvoiceNumber), "", 1, "L", false, 0, "")
	doc.Ln(2)

	// Client and dates
	doc.SetFont("Helvetica", "", 10)
	r.labelRow(doc, tr, "Bill to", inv.ClientName)
	if inv.ClientEmail != "" {
		r.labelRow(doc, tr, "", inv.ClientEmail)
	}
	r.labelRow(doc, tr, "Issue date", inv.IssueDate.Format(dateLayout))
	r.labelRow(doc, tr, "Due date", inv.DueDate.Format(dateLayout))
	r.labelRow(doc, tr, "Status", string(inv.Status))
	doc.Ln(4)

	// Item table
	doc.SetFillColor(primary.r, primary.g, primary.b)
	doc.SetTextColor(255, 255, 255)
	doc.SetFont("Helvetica", "B", 10)
	for _, c := range itemColumns {
		doc.CellFormat(c.width, lineHeight, c.title, "1", 0, c.align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		values := []string{
			item.ItemName,
			item.Quantity.String(),
			money(item.Price),
			money(item.Discount),
			money(item.Tax),
			money(domain.RoundMoney(domain.ComputeLineTotal(item))),
		}
		for i, c := range itemColumns {
			doc.CellFormat(c.width, lineHeight, tr(truncate(values[i], 48)), "1", 0, c.align, false, 0, "")
		}
		doc.Ln(-1)
		if item.Description != "" {
			doc.SetFont("Helvetica", "I", 8)
			doc.SetTextColor(secondary.r, secondary.g, secondary.b)
			doc.MultiCell(0, 5, tr(item.Description), "", "L", false)
			doc.SetFont("Helvetica", "", 10)
			doc.SetTextColor(0, 0, 0)
		}
	}
	doc.Ln(4)

	// Totals
	totals := domain.ComputeDocumentTotals(inv.Items)
	r.totalRow(doc, "Subtotal", money(totals.Subtotal), false)
	r.totalRow(doc, "Discount", money(totals.Discount), false)
	r.totalRow(doc, "Tax", money(totals.Tax), false)
	r.totalRow(doc, "Total "+inv.Currency, money(domain.RoundMoney(totals.Total)), true)

	if inv.Notes != "" {
		doc.Ln(6)
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(0, lineHeight, "Notes", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) labelRow(doc *gofpdf.Fpdf, tr func(string) string, label, value string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(30, 6, label, "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func (r *Renderer) totalRow(doc *gofpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	doc.SetFont("Helvetica", style, 10)
	doc.CellFormat(140, lineHeight, label, "", 0, "R", false, 0, "")
	doc.CellFormat(40, lineHeight, value, "", 1, "R", false, 0, "")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyPlaces)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type rgb struct{ r, g, b int }

// parseHexColor accepts #rgb and #rrggbb, falling back to black
func parseHexColor(s string) rgb {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return rgb{}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}
