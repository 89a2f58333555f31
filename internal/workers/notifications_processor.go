// internal/workers/notifications_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// NotificationProcessor handles outgoing e-mail
type NotificationProcessor struct {
	invoices ports.InvoiceService
	settings ports.SettingsService
	mailer   ports.Mailer
	logger   *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(
	invoices ports.InvoiceService,
	settings ports.SettingsService,
	mailer ports.Mailer,
	logger *slog.Logger,
) *NotificationProcessor {
	return &NotificationProcessor{
		invoices: invoices,
		settings: settings,
		mailer:   mailer,
		logger:   logger.With(slog.String("processor", "notification")),
	}
}

// SendInvoice e-mails the invoice with its PDF attached
func (p *NotificationProcessor) SendInvoice(ctx context.Context, t *asynq.Task) error {
	var payload InvoicePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	data, inv, err := p.invoices.PDF(ctx, payload.InvoiceID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("invoice %s: %v: %w", payload.InvoiceID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to load invoice pdf: %w", err)
	}

	company := domain.DefaultBranding().CompanyName
	if b, err := p.settings.GetBranding(ctx); err == nil && b.CompanyName != "" {
		company = b.CompanyName
	}

	to := payload.To
	if to == "" {
		to = inv.ClientEmail
	}

	email := ports.Email{
		To:      []string{to},
		Subject: fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, company),
		Body: fmt.Sprintf("Dear %s,\n\nPlease find attached invoice %s for %s %s, due %s.\n\n%s\n",
			inv.ClientName, inv.InvoiceNumber, inv.Currency, inv.Amount.StringFixed(domain.MoneyPlaces),
			inv.DueDate.Format("January 2, 2006"), company),
		Attachments: []ports.Attachment{{
			Filename:    inv.InvoiceNumber + ".pdf",
			ContentType: "application/pdf",
			Data:        data,
		}},
	}

	p.logger.InfoContext(ctx, "sending invoice",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("to", to))

	if err := p.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

// SendEmail delivers a prepared notification
func (p *NotificationProcessor) SendEmail(ctx context.Context, t *asynq.Task) error {
	var email ports.Email
	if err := decodePayload(t, &email); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "sending email",
		slog.Any("to", email.To),
		slog.String("subject", email.Subject))

	if err := p.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	p.logger.InfoContext(ctx, "email sent successfully")
	return nil
}
