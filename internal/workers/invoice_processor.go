// internal/workers/invoice_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// InvoiceProcessor renders invoice PDFs and runs scheduled invoice upkeep
type InvoiceProcessor struct {
	invoices ports.InvoiceService
	now      func() time.Time
	logger   *slog.Logger
}

// NewInvoiceProcessor creates a new invoice processor
func NewInvoiceProcessor(invoices ports.InvoiceService, logger *slog.Logger) *InvoiceProcessor {
	return &InvoiceProcessor{
		invoices: invoices,
		now:      time.Now,
		logger:   logger.With(slog.String("processor", "invoice")),
	}
}

// RenderPDF renders the invoice and stores the document
func (p *InvoiceProcessor) RenderPDF(ctx context.Context, t *asynq.Task) error {
	var payload InvoicePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	key, err := p.invoices.RenderAndStorePDF(ctx, payload.InvoiceID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted before the task ran.
		p.logger.InfoContext(ctx, "invoice gone, skipping render",
			slog.String("invoice_id", payload.InvoiceID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", payload.InvoiceID, err)
	}

	p.logger.InfoContext(ctx, "invoice pdf stored",
		slog.String("invoice_id", payload.InvoiceID.String()),
		slog.String("key", key))
	return nil
}

// MarkOverdue flags unpaid invoices past their due date
func (p *InvoiceProcessor) MarkOverdue(ctx context.Context, t *asynq.Task) error {
	n, err := p.invoices.MarkOverdue(ctx, p.now())
	if err != nil {
		return fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	p.logger.InfoContext(ctx, "overdue invoices marked", slog.Int64("count", n))
	return nil
}
