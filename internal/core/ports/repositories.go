// internal/core/ports/repositories.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// InvoiceRepository defines the persistence port for invoices.
// Lookups of missing rows return domain.ErrNotFound.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	Update(ctx context.Context, inv *domain.Invoice) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error
	SetPDF(ctx context.Context, id uuid.UUID, key string, renderedAt time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, filter domain.InvoiceFilter, params domain.ListParams) ([]*domain.Invoice, int64, error)
	ListAll(ctx context.Context) ([]*domain.Invoice, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	NextSequence(ctx context.Context, day time.Time) (int64, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	SummarizeByStatus(ctx context.Context) (map[domain.InvoiceStatus]InvoiceStatusSummary, error)
}

// InvoiceStatusSummary aggregates invoices sharing a status
type InvoiceStatusSummary struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// LeadRepository defines the persistence port for leads
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	List(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, int64, error)
	// ListAll applies filter and sort without paging
	ListAll(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*domain.LeadStats, error)
}

// EmployeeRepository defines the persistence port for employees
type EmployeeRepository interface {
	Create(ctx context.Context, e *domain.Employee) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error)
	ListActive(ctx context.Context) ([]*domain.Employee, error)
	ListAll(ctx context.Context) ([]*domain.Employee, error)
}

// RoleRepository defines the persistence port for roles
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
}

// SettingsRepository stores tenant settings documents.
// Getters return domain.ErrNotFound until a document is saved.
type SettingsRepository interface {
	GetBranding(ctx context.Context) (*domain.Branding, error)
	SaveBranding(ctx context.Context, b *domain.Branding) error
	GetNotifications(ctx context.Context) (*domain.NotificationSettings, error)
	SaveNotifications(ctx context.Context, n *domain.NotificationSettings) error
}

// BackupRepository stores backup history
type BackupRepository interface {
	Create(ctx context.Context, rec *domain.BackupRecord) error
	Update(ctx context.Context, rec *domain.BackupRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.BackupRecord, error)
	List(ctx context.Context, limit int) ([]*domain.BackupRecord, error)
	ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*domain.BackupRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
