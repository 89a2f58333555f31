// Package sheets converts leads to and from CSV and XLSX spreadsheets.
package sheets

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// Content types for lead exports
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const dateLayout = "2006-01-02"

// LeadHeaders is the column order of every lead export and import
var LeadHeaders = []string{
	"Company", "Contact Name", "Email", "Phone", "Status", "Priority",
	"Assigned To", "Last Contact", "Source", "Estimated Value", "Notes", "Created At",
}

// RowError describes an import row that was skipped. Row is zero when the
// failure happened after parsing.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func leadRow(l *domain.Lead) []string {
	lastContact := ""
	if l.LastContact != nil {
		lastContact = l.LastContact.Format(dateLayout)
	}
	return []string{
		l.Company,
		l.ContactName,
		l.Email,
		l.Phone,
		string(l.Status),
		string(l.Priority),
		l.AssigneeName,
		lastContact,
		l.Source,
		l.EstimatedValue.StringFixed(domain.MoneyPlaces),
		l.Notes,
		l.CreatedAt.Format(time.RFC3339),
	}
}

// WriteLeadsCSV writes a header row and one row per lead
func WriteLeadsCSV(w io.Writer, leads []*domain.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LeadHeaders); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(leadRow(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLeadsXLSX writes a single-sheet workbook with a styled header row
func WriteLeadsXLSX(w io.Writer, leads []*domain.Lead) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Leads")
	if err != nil {
		return fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range LeadHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for i, value := range leadRow(l) {
			cell := row.AddCell()
			if LeadHeaders[i] == "Estimated Value" {
				f, _ := l.EstimatedValue.Float64()
				cell.SetFloatWithFormat(f, "#,##0.00")
				continue
			}
			cell.Value = value
		}
	}

	for i := range LeadHeaders {
		sheet.SetColWidth(i+1, i+1, 18)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadLeadsXLSX parses the first sheet of a workbook laid out like
// LeadHeaders. The header row is matched by name so columns may be
// reordered; rows that fail validation are reported and skipped.
func ReadLeadsXLSX(data []byte) ([]*domain.Lead, []RowError, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: not a valid xlsx file: %v", domain.ErrValidation, err)
	}
	if len(file.Sheets) == 0 {
		return nil, nil, domain.ValidationError("workbook has no sheets")
	}

	var (
		leads   []*domain.Lead
		skipped []RowError
		columns map[string]int
		rowIdx  int
	)

	err = file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		values := rowValues(r, len(LeadHeaders)+4)
		if columns == nil {
			columns = headerIndex(values)
			return nil
		}
		if isBlank(values) {
			return nil
		}

		lead, err := parseLead(values, columns)
		if err == nil {
			err = lead.Validate()
		}
		if err != nil {
			skipped = append(skipped, RowError{Row: rowIdx, Message: err.Error()})
			return nil
		}
		leads = append(leads, lead)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if _, ok := columns["company"]; !ok {
		return nil, nil, domain.ValidationError("missing Company column")
	}

	return leads, skipped, nil
}

// ReadLeadsCSV parses CSV data with the same rules as ReadLeadsXLSX
func ReadLeadsCSV(r io.Reader) ([]*domain.Lead, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed csv: %v", domain.ErrValidation, err)
	}
	if len(records) == 0 {
		return nil, nil, domain.ValidationError("empty file")
	}

	columns := headerIndex(records[0])
	if _, ok := columns["company"]; !ok {
		return nil, nil, domain.ValidationError("missing Company column")
	}

	var (
		leads   []*domain.Lead
		skipped []RowError
	)
	for i, values := range records[1:] {
		if isBlank(values) {
			continue
		}
		lead, err := parseLead(values, columns)
		if err == nil {
			err = lead.Validate()
		}
		if err != nil {
			skipped = append(skipped, RowError{Row: i + 2, Message: err.Error()})
			continue
		}
		leads = append(leads, lead)
	}
	return leads, skipped, nil
}

// SniffXLSX reports whether data looks like a zip-based workbook
func SniffXLSX(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func rowValues(r *xlsx.Row, n int) []string {
	values := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := r.GetCell(i)
		if c == nil {
			values = append(values, "")
			continue
		}
		values = append(values, strings.TrimSpace(c.String()))
	}
	return values
}

func headerIndex(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		key := normalizeHeader(v)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

func parseLead(values []string, columns map[string]int) (*domain.Lead, error) {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	lead := &domain.Lead{
		Company:     get("company"),
		ContactName: get("contact_name"),
		Email:       get("email"),
		Phone:       get("phone"),
		Status:      domain.LeadStatus(titleCase(get("status"))),
		Priority:    domain.LeadPriority(titleCase(get("priority"))),
		Source:      get("source"),
		Notes:       get("notes"),
	}

	if v := get("estimated_value"); v != "" {
		d, err := decimal.NewFromString(strings.NewReplacer("$", "", ",", "").Replace(v))
		if err != nil {
			return nil, domain.ValidationError("estimated value %q is not a number", v)
		}
		lead.EstimatedValue = d
	}
	if v := get("last_contact"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, domain.ValidationError("last contact %q is not a YYYY-MM-DD date", v)
		}
		lead.LastContact = &t
	}

	return lead, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
