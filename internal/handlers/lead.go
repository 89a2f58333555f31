// internal/handlers/lead.go
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/adapters/sheets"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// LeadHandler handles lead HTTP requests
type LeadHandler struct {
	responder
	service     ports.LeadService
	maxFileSize int64
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(service ports.LeadService, maxFileSize int64, logger *slog.Logger) *LeadHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &LeadHandler{
		responder:   responder{logger: logger.With(slog.String("handler", "lead"))},
		service:     service,
		maxFileSize: maxFileSize,
	}
}

// List handles GET /api/v1/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	page, err := h.service.List(r.Context(), filter, parseListParams(r))
	if err != nil {
		h.respondServiceError(w, r, err, "failed to list leads")
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

// Get handles GET /api/v1/leads/{id}
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	lead, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to get lead")
		return
	}
	h.respondJSON(w, http.StatusOK, lead)
}

// Create handles POST /api/v1/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req LeadRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	lead := req.ToDomain()
	if err := h.service.Create(r.Context(), lead); err != nil {
		h.respondServiceError(w, r, err, "failed to create lead")
		return
	}
	h.logger.InfoContext(r.Context(), "lead created",
		slog.String("lead_id", lead.ID.String()),
		slog.String("company", lead.Company))
	h.respondJSON(w, http.StatusCreated, lead)
}

// Update handles PUT /api/v1/leads/{id}
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req LeadRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	lead := req.ToDomain()
	if err := h.service.Update(r.Context(), id, lead); err != nil {
		h.respondServiceError(w, r, err, "failed to update lead")
		return
	}
	h.respondJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/v1/leads/{id}
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "failed to delete lead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/leads/stats
func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load lead statistics")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// Employees handles GET /api/v1/leads/employees
func (h *LeadHandler) Employees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.Employees(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "failed to list employees")
		return
	}
	h.respondJSON(w, http.StatusOK, employees)
}

// Export handles GET /api/v1/leads/export. CSV is the default; ?format=xlsx
// returns a workbook.
func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		h.respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	leads, err := h.service.Export(ctx, filter, parseListParams(r))
	if err != nil {
		h.respondServiceError(w, r, err, "failed to export leads")
		return
	}

	var buf bytes.Buffer
	contentType := sheets.ContentTypeCSV
	if format == "xlsx" {
		contentType = sheets.ContentTypeXLSX
		err = sheets.WriteLeadsXLSX(&buf, leads)
	} else {
		err = sheets.WriteLeadsCSV(&buf, leads)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to write lead export", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "failed to export leads")
		return
	}

	filename := fmt.Sprintf("leads_%s.%s", time.Now().UTC().Format("20060102"), format)
	attachment(w, contentType, filename, buf.Len())
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export response", slog.String("error", err.Error()))
	}

	h.logger.InfoContext(ctx, "leads exported",
		slog.String("format", format),
		slog.Int("count", len(leads)))
}

// ImportResult reports the outcome of a lead upload
type ImportResult struct {
	Imported int               `json:"imported"`
	Skipped  []sheets.RowError `json:"skipped"`
}

// Import handles POST /api/v1/leads/import with a multipart "file" field
// holding an xlsx workbook or a CSV file.
func (h *LeadHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	var (
		leads   []*domain.Lead
		rowErrs []sheets.RowError
	)
	switch {
	case sheets.SniffXLSX(data):
		leads, rowErrs, err = sheets.ReadLeadsXLSX(data)
	case strings.HasSuffix(strings.ToLower(header.Filename), ".csv"),
		strings.HasPrefix(header.Header.Get("Content-Type"), "text/csv"):
		leads, rowErrs, err = sheets.ReadLeadsCSV(bytes.NewReader(data))
	default:
		h.respondError(w, http.StatusBadRequest, "only xlsx and csv files are allowed")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err, "failed to read lead file")
		return
	}

	result := ImportResult{Skipped: rowErrs}
	if result.Skipped == nil {
		result.Skipped = []sheets.RowError{}
	}
	for _, lead := range leads {
		if err := h.service.Create(ctx, lead); err != nil {
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict) {
				result.Skipped = append(result.Skipped, sheets.RowError{Message: lead.Company + ": " + err.Error()})
				continue
			}
			h.respondServiceError(w, r, err, "failed to import leads")
			return
		}
		result.Imported++
	}

	h.logger.InfoContext(ctx, "leads imported",
		slog.String("filename", header.Filename),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", len(result.Skipped)))
	h.respondJSON(w, http.StatusOK, result)
}

func (h *LeadHandler) parseFilter(w http.ResponseWriter, r *http.Request) (domain.LeadFilter, bool) {
	q := r.URL.Query()
	filter := domain.LeadFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   domain.LeadStatus(q.Get("status")),
		Priority: domain.LeadPriority(q.Get("priority")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", filter.Status))
		return filter, false
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", filter.Priority))
		return filter, false
	}
	if v := firstNonEmpty(q.Get("assignedTo"), q.Get("assigned_to")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid assignedTo format")
			return filter, false
		}
		filter.AssignedTo = &id
	}
	return filter, true
}

// LeadRequest is the body of lead create and update requests
type LeadRequest struct {
	Company        string              `json:"company"`
	ContactName    string              `json:"contact_name"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	Status         domain.LeadStatus   `json:"status"`
	Priority       domain.LeadPriority `json:"priority"`
	AssignedTo     *uuid.UUID          `json:"assigned_to"`
	LastContact    *Date               `json:"last_contact"`
	Source         string              `json:"source"`
	EstimatedValue decimal.Decimal     `json:"estimated_value"`
	Notes          string              `json:"notes"`
}

// ToDomain converts the request to a lead
func (req *LeadRequest) ToDomain() *domain.Lead {
	lead := &domain.Lead{
		Company:        req.Company,
		ContactName:    strings.TrimSpace(req.ContactName),
		Email:          req.Email,
		Phone:          strings.TrimSpace(req.Phone),
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		Source:         strings.TrimSpace(req.Source),
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
	}
	if req.LastContact != nil && !req.LastContact.IsZero() {
		t := req.LastContact.Time
		lead.LastContact = &t
	}
	return lead
}
