// internal/core/ports/infrastructure.go
package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// ObjectStorage stores binary artifacts such as backups and rendered PDFs
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// TaskQueue enqueues background jobs and returns their task IDs
type TaskQueue interface {
	EnqueueBackup(ctx context.Context, backupID uuid.UUID) (string, error)
	EnqueueInvoicePDF(ctx context.Context, invoiceID uuid.UUID) (string, error)
	EnqueueInvoiceEmail(ctx context.Context, invoiceID uuid.UUID, to string) (string, error)
	EnqueueNotification(ctx context.Context, email Email) (string, error)
}

// InvoiceRenderer produces the printable form of an invoice
type InvoiceRenderer interface {
	Render(inv *domain.Invoice, branding *domain.Branding) ([]byte, error)
}

// Attachment is a file sent along with an e-mail
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Email is an outgoing message
type Email struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	HTML        bool         `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Mailer delivers e-mail
type Mailer interface {
	Send(ctx context.Context, email Email) error
}
