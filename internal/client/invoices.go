package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// InvoiceInput is the body of invoice create and update calls
type InvoiceInput struct {
	InvoiceNumber string               `json:"invoice_number,omitempty"`
	ClientName    string               `json:"client_name"`
	ClientEmail   string               `json:"client_email,omitempty"`
	IssueDate     time.Time            `json:"issue_date"`
	DueDate       time.Time            `json:"due_date"`
	Status        domain.InvoiceStatus `json:"status,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Items         []domain.LineItem    `json:"items"`
}

// InvoiceInputFrom copies the editable fields of inv
func InvoiceInputFrom(inv *domain.Invoice) InvoiceInput {
	return InvoiceInput{
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Status:        inv.Status,
		Currency:      inv.Currency,
		Notes:         inv.Notes,
		Items:         inv.Items,
	}
}

// SendResult acknowledges a queued invoice e-mail
type SendResult struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Invoices is the invoice gateway
type Invoices struct {
	c *Client
}

// List fetches one page of invoices. query carries page, limit, search,
// status, sortBy and sortOrder.
func (g *Invoices) List(ctx context.Context, query url.Values) (*domain.Page[*domain.Invoice], error) {
	var page domain.Page[*domain.Invoice]
	if err := g.c.do(ctx, "fetch invoices", http.MethodGet, "/invoices", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches one invoice
func (g *Invoices) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := g.c.do(ctx, "fetch invoice", http.MethodGet, "/invoices/"+id.String(), nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create stores a new invoice; the server computes totals
func (g *Invoices) Create(ctx context.Context, in InvoiceInput) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := g.c.do(ctx, "create invoice", http.MethodPost, "/invoices", nil, in, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update replaces an invoice
func (g *Invoices) Update(ctx context.Context, id uuid.UUID, in InvoiceInput) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := g.c.do(ctx, "update invoice", http.MethodPut, "/invoices/"+id.String(), nil, in, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Delete soft-deletes an invoice
func (g *Invoices) Delete(ctx context.Context, id uuid.UUID) error {
	return g.c.do(ctx, "delete invoice", http.MethodDelete, "/invoices/"+id.String(), nil, nil, nil)
}

// UpdateStatus moves an invoice to status
func (g *Invoices) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) (*domain.Invoice, error) {
	body := struct {
		Status domain.InvoiceStatus `json:"status"`
	}{status}

	var inv domain.Invoice
	if err := g.c.do(ctx, "update invoice status", http.MethodPatch, "/invoices/"+id.String()+"/status", nil, body, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Send queues the invoice e-mail. An empty to uses the invoice's client e-mail.
func (g *Invoices) Send(ctx context.Context, id uuid.UUID, to string) (*SendResult, error) {
	var body any
	if to != "" {
		body = struct {
			To string `json:"to"`
		}{to}
	}

	var res SendResult
	if err := g.c.do(ctx, "send invoice", http.MethodPost, "/invoices/"+id.String()+"/send", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DownloadPDF fetches the rendered invoice PDF
func (g *Invoices) DownloadPDF(ctx context.Context, id uuid.UUID) (*Download, error) {
	return g.c.download(ctx, "download invoice pdf", "/invoices/"+id.String()+"/pdf", nil, "invoice-"+id.String()+".pdf")
}
