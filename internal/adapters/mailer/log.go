package mailer

import (
	"context"
	"log/slog"

	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/pkg/config"
)

// LogMailer writes messages to the log instead of sending them. It is used
// in development and whenever no SMTP credentials are configured.
type LogMailer struct {
	logger *slog.Logger
}

var _ ports.Mailer = (*LogMailer)(nil)

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

func (m *LogMailer) Send(ctx context.Context, email ports.Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipients
	}
	m.logger.InfoContext(ctx, "email would be sent",
		slog.Any("to", email.To),
		slog.String("subject", email.Subject),
		slog.Int("body_bytes", len(email.Body)),
		slog.Int("attachments", len(email.Attachments)))
	return nil
}

// New picks the SMTP mailer when credentials are present and the log
// mailer otherwise
func New(cfg *config.Config, logger *slog.Logger) ports.Mailer {
	if cfg.MailConfigured() && !cfg.IsDevelopment() {
		return NewSMTPMailer(cfg.SMTP, logger)
	}
	logger.Warn("SMTP not configured, emails will be logged only")
	return NewLogMailer(logger)
}
