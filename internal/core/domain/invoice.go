// internal/core/domain/invoice.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

// Invoice status constants
const (
	InvoiceStatusDraft   InvoiceStatus = "Draft"
	InvoiceStatusUnpaid  InvoiceStatus = "Unpaid"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

// DefaultCurrency is used when an invoice does not name one
const DefaultCurrency = "USD"

// IsValid reports whether s is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusUnpaid},
	InvoiceStatusUnpaid:  {InvoiceStatusPaid, InvoiceStatusOverdue},
	InvoiceStatusOverdue: {InvoiceStatusPaid},
}

// CanTransitionTo reports whether an invoice may move from s to next
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Invoice represents a billing document with its line items
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientName    string          `json:"client_name"`
	ClientEmail   string          `json:"client_email,omitempty"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	Status        InvoiceStatus   `json:"status"`
	Currency      string          `json:"currency"`
	Notes         string          `json:"notes,omitempty"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Amount        decimal.Decimal `json:"amount"`
	PDFKey        string          `json:"-"`
	PDFRenderedAt *time.Time      `json:"pdf_rendered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// Validate performs domain validation on the invoice and applies defaults
func (i *Invoice) Validate() error {
	i.ClientName = strings.TrimSpace(i.ClientName)
	if i.ClientName == "" {
		return ValidationError("client_name is required")
	}
	if i.IssueDate.IsZero() {
		return ValidationError("issue_date is required")
	}
	if !i.DueDate.IsZero() && i.DueDate.Before(i.IssueDate) {
		return ValidationError("due_date cannot be before issue_date")
	}
	if len(i.Items) == 0 {
		return ValidationError("at least one item is required")
	}
	for idx, item := range i.Items {
		if strings.TrimSpace(item.ItemName) == "" {
			return ValidationError("items[%d].item_name is required", idx)
		}
		if item.Quantity.IsNegative() {
			return ValidationError("items[%d].quantity cannot be negative", idx)
		}
		if item.Price.IsNegative() {
			return ValidationError("items[%d].price cannot be negative", idx)
		}
		if item.Discount.IsNegative() {
			return ValidationError("items[%d].discount cannot be negative", idx)
		}
		if item.Tax.IsNegative() {
			return ValidationError("items[%d].tax cannot be negative", idx)
		}
	}
	if i.Status == "" {
		i.Status = InvoiceStatusDraft
	}
	if !i.Status.IsValid() {
		return ValidationError("invalid status %q", i.Status)
	}
	if i.Currency == "" {
		i.Currency = DefaultCurrency
	}
	i.Currency = strings.ToUpper(i.Currency)
	if i.DueDate.IsZero() {
		i.DueDate = i.IssueDate.AddDate(0, 0, 30)
	}
	return nil
}

// CalculateTotals recomputes line and document totals
func (i *Invoice) CalculateTotals() {
	for idx := range i.Items {
		i.Items[idx].Total = RoundMoney(ComputeLineTotal(i.Items[idx]))
	}

	totals := ComputeDocumentTotals(i.Items)
	i.Subtotal = RoundMoney(totals.Subtotal)
	i.DiscountTotal = RoundMoney(totals.Discount)
	i.TaxTotal = RoundMoney(totals.Tax)
	i.Amount = RoundMoney(totals.Total)
}

// IsOverdue reports whether an unpaid invoice is past its due date at now
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceStatusUnpaid && !i.DueDate.IsZero() && now.After(i.DueDate)
}

// PrepareForStorage prepares the invoice for database storage
func (i *Invoice) PrepareForStorage() {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	i.CalculateTotals()

	now := time.Now().UTC()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

// FormatInvoiceNumber builds numbers like INV-20240131-00042
func FormatInvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%05d", day.Format("20060102"), seq)
}

// InvoiceFilter narrows invoice list queries
type InvoiceFilter struct {
	Search string
	Status InvoiceStatus
}
