package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// LeadInput is the body of lead create and update calls
type LeadInput struct {
	Company        string              `json:"company"`
	ContactName    string              `json:"contact_name,omitempty"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone,omitempty"`
	Status         domain.LeadStatus   `json:"status,omitempty"`
	Priority       domain.LeadPriority `json:"priority,omitempty"`
	AssignedTo     *uuid.UUID          `json:"assigned_to,omitempty"`
	LastContact    *time.Time          `json:"last_contact,omitempty"`
	Source         string              `json:"source,omitempty"`
	EstimatedValue decimal.Decimal     `json:"estimated_value"`
	Notes          string              `json:"notes,omitempty"`
}

// LeadInputFrom copies the editable fields of l
func LeadInputFrom(l *domain.Lead) LeadInput {
	return LeadInput{
		Company:        l.Company,
		ContactName:    l.ContactName,
		Email:          l.Email,
		Phone:          l.Phone,
		Status:         l.Status,
		Priority:       l.Priority,
		AssignedTo:     l.AssignedTo,
		LastContact:    l.LastContact,
		Source:         l.Source,
		EstimatedValue: l.EstimatedValue,
		Notes:          l.Notes,
	}
}

// ImportRowError describes one rejected row of a lead import
type ImportRowError struct {
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarises a lead import
type ImportResult struct {
	Imported int              `json:"imported"`
	Skipped  []ImportRowError `json:"skipped"`
}

// Leads is the lead gateway
type Leads struct {
	c *Client
}

// List fetches one page of leads. query carries page, limit, search, status,
// priority, assignedTo, sortBy and sortOrder.
func (g *Leads) List(ctx context.Context, query url.Values) (*domain.Page[*domain.Lead], error) {
	var page domain.Page[*domain.Lead]
	if err := g.c.do(ctx, "fetch leads", http.MethodGet, "/leads", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches one lead
func (g *Leads) Get(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	if err := g.c.do(ctx, "fetch lead", http.MethodGet, "/leads/"+id.String(), nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Create stores a new lead
func (g *Leads) Create(ctx context.Context, in LeadInput) (*domain.Lead, error) {
	var lead domain.Lead
	if err := g.c.do(ctx, "create lead", http.MethodPost, "/leads", nil, in, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Update replaces a lead
func (g *Leads) Update(ctx context.Context, id uuid.UUID, in LeadInput) (*domain.Lead, error) {
	var lead domain.Lead
	if err := g.c.do(ctx, "update lead", http.MethodPut, "/leads/"+id.String(), nil, in, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Delete soft-deletes a lead
func (g *Leads) Delete(ctx context.Context, id uuid.UUID) error {
	return g.c.do(ctx, "delete lead", http.MethodDelete, "/leads/"+id.String(), nil, nil, nil)
}

// Stats fetches pipeline statistics
func (g *Leads) Stats(ctx context.Context) (*domain.LeadStats, error) {
	var stats domain.LeadStats
	if err := g.c.do(ctx, "fetch lead stats", http.MethodGet, "/leads/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Employees lists the people leads can be assigned to
func (g *Leads) Employees(ctx context.Context) ([]*domain.Employee, error) {
	var out []*domain.Employee
	if err := g.c.do(ctx, "fetch employees", http.MethodGet, "/leads/employees", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportCSV downloads the leads matching query as CSV
func (g *Leads) ExportCSV(ctx context.Context, query url.Values) (*Download, error) {
	return g.export(ctx, query, "csv")
}

// ExportXLSX downloads the leads matching query as an Excel workbook
func (g *Leads) ExportXLSX(ctx context.Context, query url.Values) (*Download, error) {
	return g.export(ctx, query, "xlsx")
}

func (g *Leads) export(ctx context.Context, query url.Values, format string) (*Download, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("format", format)
	name := fmt.Sprintf("leads_%s.%s", time.Now().Format("20060102"), format)
	return g.c.download(ctx, "export leads", "/leads/export", q, name)
}

// Import uploads a CSV or XLSX file of leads
func (g *Leads) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	const op = "import leads"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("%s: read file: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := g.c.newRequest(ctx, http.MethodPost, "/leads/import", nil, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.c.send(op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &res, nil
}
