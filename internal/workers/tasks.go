// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/erp-admin/internal/core/ports"
)

// Task types
const (
	TypeBackupCreate       = "backup:create"
	TypeBackupCleanup      = "backup:cleanup"
	TypeInvoiceRenderPDF   = "invoice:render_pdf"
	TypeInvoiceMarkOverdue = "invoice:mark_overdue"
	TypeEmailInvoice       = "email:invoice"
	TypeEmailNotification  = "email:notification"
	TypeStatsRefresh       = "stats:refresh"
)

// Queue names, matching ASYNQ_QUEUES
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// QueueTasks lists the task types routed to each queue, scheduled ones
// included.
var QueueTasks = map[string][]string{
	QueueCritical: {TypeBackupCreate},
	QueueDefault:  {TypeInvoiceRenderPDF, TypeEmailInvoice, TypeInvoiceMarkOverdue},
	QueueLow:      {TypeEmailNotification, TypeBackupCleanup, TypeStatsRefresh},
}

// BackupPayload identifies the backup record a task works on
type BackupPayload struct {
	BackupID uuid.UUID `json:"backup_id"`
}

// InvoicePayload identifies the invoice a task works on
type InvoicePayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	To        string    `json:"to,omitempty"`
}

// NewBackupTask builds a backup:create task. Backups are not retried: a
// failed run is recorded on the backup itself and the user starts a new one.
func NewBackupTask(id uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(BackupPayload{BackupID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackupCreate, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
	), nil
}

// NewInvoicePDFTask builds an invoice:render_pdf task, deduplicated per
// invoice for a short window so bursts of edits render once.
func NewInvoicePDFTask(id uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(InvoicePayload{InvoiceID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvoiceRenderPDF, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(10*time.Second),
	), nil
}

// NewInvoiceEmailTask builds an email:invoice task
func NewInvoiceEmailTask(id uuid.UUID, to string) (*asynq.Task, error) {
	payload, err := json.Marshal(InvoicePayload{InvoiceID: id, To: to})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailInvoice, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
	), nil
}

// NewNotificationTask builds an email:notification task
func NewNotificationTask(email ports.Email) (*asynq.Task, error) {
	payload, err := json.Marshal(email)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailNotification, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(5),
	), nil
}

// Enqueuer implements ports.TaskQueue on an asynq client
type Enqueuer struct {
	client *asynq.Client
}

var _ ports.TaskQueue = (*Enqueuer)(nil)

// NewEnqueuer wraps client
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueBackup(ctx context.Context, backupID uuid.UUID) (string, error) {
	task, err := NewBackupTask(backupID)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) EnqueueInvoicePDF(ctx context.Context, invoiceID uuid.UUID) (string, error) {
	task, err := NewInvoicePDFTask(invoiceID)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) EnqueueInvoiceEmail(ctx context.Context, invoiceID uuid.UUID, to string) (string, error) {
	task, err := NewInvoiceEmailTask(invoiceID, to)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) EnqueueNotification(ctx context.Context, email ports.Email) (string, error) {
	task, err := NewNotificationTask(email)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

func decodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
