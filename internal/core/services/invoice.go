// internal/core/services/invoice.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const (
	invoiceSummaryCacheKey = "erp:dashboard:invoices"
	summaryCacheTTL        = 5 * time.Minute
)

// InvoicePDFKey is the object storage key of an invoice's rendered PDF
func InvoicePDFKey(id uuid.UUID) string {
	return "invoices/" + id.String() + ".pdf"
}

// InvoiceService handles invoice business logic
type InvoiceService struct {
	repo     ports.InvoiceRepository
	settings ports.SettingsRepository
	renderer ports.InvoiceRenderer
	storage  ports.ObjectStorage
	queue    ports.TaskQueue
	cache    ports.CacheRepository
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.InvoiceService = (*InvoiceService)(nil)

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	repo ports.InvoiceRepository,
	settings ports.SettingsRepository,
	renderer ports.InvoiceRenderer,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	cache ports.CacheRepository,
	logger *slog.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:     repo,
		settings: settings,
		renderer: renderer,
		storage:  storage,
		queue:    queue,
		cache:    cache,
		logger:   logger.With(slog.String("service", "invoice")),
		now:      time.Now,
	}
}

// Create validates, numbers and stores a new invoice
func (s *InvoiceService) Create(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	if inv.InvoiceNumber == "" {
		day := s.now().UTC()
		seq, err := s.repo.NextSequence(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", err)
		}
		inv.InvoiceNumber = domain.FormatInvoiceNumber(day, seq)
	}

	inv.PrepareForStorage()

	if err := s.repo.Create(ctx, inv); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logger.InfoContext(ctx, "created invoice",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.InvoiceNumber),
		slog.String("amount", inv.Amount.String()))

	s.afterWrite(ctx, inv.ID)
	return nil
}

// Get retrieves an invoice by ID
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	return inv, nil
}

// Update replaces an invoice's editable fields
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, inv *domain.Invoice) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get invoice %s: %w", id, err)
	}

	inv.ID = id
	inv.CreatedAt = existing.CreatedAt
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = existing.InvoiceNumber
	}
	if inv.Status == "" {
		inv.Status = existing.Status
	}
	if !existing.Status.CanTransitionTo(inv.Status) {
		return fmt.Errorf("%w: cannot move invoice from %s to %s", domain.ErrConflict, existing.Status, inv.Status)
	}

	if err := inv.Validate(); err != nil {
		return err
	}
	inv.PrepareForStorage()

	if err := s.repo.Update(ctx, inv); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	s.logger.InfoContext(ctx, "updated invoice",
		slog.String("invoice_id", id.String()),
		slog.String("status", string(inv.Status)))

	s.afterWrite(ctx, id)
	return nil
}

// Delete soft-deletes an invoice
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete invoice %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "deleted invoice", slog.String("invoice_id", id.String()))
	s.invalidateSummary(ctx)
	return nil
}

// List returns a page of invoices
func (s *InvoiceService) List(ctx context.Context, filter domain.InvoiceFilter, params domain.ListParams) (*domain.Page[*domain.Invoice], error) {
	params.Normalize()

	items, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	return domain.NewPage(items, params, total), nil
}

// UpdateStatus moves an invoice through its lifecycle
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) (*domain.Invoice, error) {
	if !status.IsValid() {
		return nil, domain.ValidationError("invalid status %q", status)
	}

	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	if inv.Status == status {
		return inv, nil
	}
	if !inv.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: cannot move invoice from %s to %s", domain.ErrConflict, inv.Status, status)
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}

	s.logger.InfoContext(ctx, "invoice status changed",
		slog.String("invoice_id", id.String()),
		slog.String("from", string(inv.Status)),
		slog.String("to", string(status)))

	inv.Status = status
	inv.UpdatedAt = s.now().UTC()
	s.invalidateSummary(ctx)
	return inv, nil
}

// PDF returns the rendered invoice
func (s *InvoiceService) PDF(ctx context.Context, id uuid.UUID) ([]byte, *domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}

	if pdfIsCurrent(inv) {
		data, err := s.readStoredPDF(ctx, inv.PDFKey)
		if err == nil {
			return data, inv, nil
		}
		s.logger.WarnContext(ctx, "stored pdf unavailable, rendering",
			slog.String("invoice_id", id.String()),
			slog.String("error", err.Error()))
	}

	data, err := s.render(ctx, inv)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store(ctx, inv, data); err != nil {
		s.logger.WarnContext(ctx, "failed to store rendered pdf",
			slog.String("invoice_id", id.String()),
			slog.String("error", err.Error()))
	}

	return data, inv, nil
}

// RenderAndStorePDF renders the invoice and saves the result
func (s *InvoiceService) RenderAndStorePDF(ctx context.Context, id uuid.UUID) (string, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get invoice %s: %w", id, err)
	}

	data, err := s.render(ctx, inv)
	if err != nil {
		return "", err
	}
	if err := s.store(ctx, inv, data); err != nil {
		return "", err
	}
	return inv.PDFKey, nil
}

// Send queues the invoice to be e-mailed to "to", or to the client address
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID, to string) (string, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	if to == "" {
		to = inv.ClientEmail
	}
	if to == "" {
		return "", domain.ValidationError("recipient e-mail is required")
	}
	if inv.Status == domain.InvoiceStatusDraft {
		return "", fmt.Errorf("%w: draft invoices cannot be sent", domain.ErrConflict)
	}

	taskID, err := s.queue.EnqueueInvoiceEmail(ctx, id, to)
	if err != nil {
		return "", fmt.Errorf("failed to queue invoice email: %w", err)
	}

	s.logger.InfoContext(ctx, "queued invoice email",
		slog.String("invoice_id", id.String()),
		slog.String("task_id", taskID))
	return taskID, nil
}

// MarkOverdue flags unpaid invoices whose due date has passed
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "marked invoices overdue", slog.Int64("count", n))
		s.invalidateSummary(ctx)
	}
	return n, nil
}

// Summary returns invoice counts and amounts per status
func (s *InvoiceService) Summary(ctx context.Context) (map[domain.InvoiceStatus]ports.InvoiceStatusSummary, error) {
	var summary map[domain.InvoiceStatus]ports.InvoiceStatusSummary
	err := s.cache.GetOrSet(ctx, invoiceSummaryCacheKey, &summary, func() (interface{}, error) {
		return s.repo.SummarizeByStatus(ctx)
	}, summaryCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize invoices: %w", err)
	}
	return summary, nil
}

func (s *InvoiceService) render(ctx context.Context, inv *domain.Invoice) ([]byte, error) {
	branding, err := s.settings.GetBranding(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		branding = domain.DefaultBranding()
	} else if err != nil {
		return nil, fmt.Errorf("failed to load branding: %w", err)
	}

	data, err := s.renderer.Render(inv, branding)
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return data, nil
}

func (s *InvoiceService) store(ctx context.Context, inv *domain.Invoice, data []byte) error {
	key := InvoicePDFKey(inv.ID)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
		return fmt.Errorf("failed to upload pdf: %w", err)
	}

	renderedAt := s.now().UTC()
	if err := s.repo.SetPDF(ctx, inv.ID, key, renderedAt); err != nil {
		return fmt.Errorf("failed to record pdf: %w", err)
	}
	inv.PDFKey = key
	inv.PDFRenderedAt = &renderedAt
	return nil
}

func (s *InvoiceService) readStoredPDF(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *InvoiceService) afterWrite(ctx context.Context, id uuid.UUID) {
	s.invalidateSummary(ctx)

	if _, err := s.queue.EnqueueInvoicePDF(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to queue pdf render",
			slog.String("invoice_id", id.String()),
			slog.String("error", err.Error()))
	}
}

func (s *InvoiceService) invalidateSummary(ctx context.Context) {
	if err := s.cache.Delete(ctx, invoiceSummaryCacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate invoice summary",
			slog.String("error", err.Error()))
	}
}

func pdfIsCurrent(inv *domain.Invoice) bool {
	return inv.PDFKey != "" && inv.PDFRenderedAt != nil && !inv.PDFRenderedAt.Before(inv.UpdatedAt)
}
