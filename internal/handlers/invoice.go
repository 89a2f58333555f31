// internal/handlers/invoice.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	responder
	service ports.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(service ports.InvoiceService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		responder: responder{logger: logger.With(slog.String("handler", "invoice"))},
		service:   service,
	}
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.InvoiceFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Status: domain.InvoiceStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", filter.Status))
		return
	}

	page, err := h.service.List(r.Context(), filter, parseListParams(r))
	if err != nil {
		h.respondServiceError(w, r, err, "failed to list invoices")
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

// Get handles GET /api/v1/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to get invoice")
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	inv := req.ToDomain()
	if err := h.service.Create(r.Context(), inv); err != nil {
		h.respondServiceError(w, r, err, "failed to create invoice")
		return
	}

	h.logger.InfoContext(r.Context(), "invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.InvoiceNumber))
	h.respondJSON(w, http.StatusCreated, inv)
}

// Update handles PUT /api/v1/invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req InvoiceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	inv := req.ToDomain()
	if err := h.service.Update(r.Context(), id, inv); err != nil {
		h.respondServiceError(w, r, err, "failed to update invoice")
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/v1/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "failed to delete invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /api/v1/invoices/{id}/status
func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status domain.InvoiceStatus `json:"status"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to update invoice status")
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// PDF handles GET /api/v1/invoices/{id}/pdf
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	data, inv, err := h.service.PDF(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to render invoice")
		return
	}

	attachment(w, "application/pdf", inv.InvoiceNumber+".pdf", len(data))
	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write pdf response", slog.String("error", err.Error()))
	}
}

// Send handles POST /api/v1/invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if !h.decodeOptionalJSON(w, r, &req) {
		return
	}

	taskID, err := h.service.Send(r.Context(), id, strings.TrimSpace(req.To))
	if err != nil {
		h.respondServiceError(w, r, err, "failed to send invoice")
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
}

// Date accepts either YYYY-MM-DD or RFC 3339 timestamps
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q must be YYYY-MM-DD or RFC 3339", s)
	}
	d.Time = t
	return nil
}

// InvoiceRequest is the body of create and update requests. Items are form
// rows, so numeric fields may arrive as numbers or strings.
type InvoiceRequest struct {
	InvoiceNumber string               `json:"invoice_number"`
	ClientName    string               `json:"client_name"`
	ClientEmail   string               `json:"client_email"`
	IssueDate     Date                 `json:"issue_date"`
	DueDate       Date                 `json:"due_date"`
	Status        domain.InvoiceStatus `json:"status"`
	Currency      string               `json:"currency"`
	Notes         string               `json:"notes"`
	Items         []map[string]any     `json:"items"`
}

// ToDomain converts the request to an invoice
func (req *InvoiceRequest) ToDomain() *domain.Invoice {
	inv := &domain.Invoice{
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		ClientName:    req.ClientName,
		ClientEmail:   strings.TrimSpace(req.ClientEmail),
		IssueDate:     req.IssueDate.Time,
		DueDate:       req.DueDate.Time,
		Status:        req.Status,
		Currency:      req.Currency,
		Notes:         req.Notes,
		Items:         make([]domain.LineItem, 0, len(req.Items)),
	}
	for _, row := range req.Items {
		inv.Items = append(inv.Items, domain.LineItemFromForm(row))
	}
	return inv
}
