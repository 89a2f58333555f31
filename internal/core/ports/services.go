// internal/core/ports/services.go
package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// InvoiceService defines the application service port for invoices
type InvoiceService interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	Update(ctx context.Context, id uuid.UUID, inv *domain.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.InvoiceFilter, params domain.ListParams) (*domain.Page[*domain.Invoice], error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) (*domain.Invoice, error)
	// PDF returns the rendered document, reusing a stored copy when it is current
	PDF(ctx context.Context, id uuid.UUID) ([]byte, *domain.Invoice, error)
	// RenderAndStorePDF renders the invoice and saves it to object storage
	RenderAndStorePDF(ctx context.Context, id uuid.UUID) (string, error)
	Send(ctx context.Context, id uuid.UUID, to string) (string, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	Summary(ctx context.Context) (map[domain.InvoiceStatus]InvoiceStatusSummary, error)
}

// LeadService defines the application service port for leads
type LeadService interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	Update(ctx context.Context, id uuid.UUID, lead *domain.Lead) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) (*domain.Page[*domain.Lead], error)
	Stats(ctx context.Context) (*domain.LeadStats, error)
	RefreshStats(ctx context.Context) (*domain.LeadStats, error)
	Employees(ctx context.Context) ([]*domain.Employee, error)
	Export(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, error)
}

// RoleService defines the application service port for roles
type RoleService interface {
	Create(ctx context.Context, role *domain.Role) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	Update(ctx context.Context, id uuid.UUID, role *domain.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.Role, error)
	Modules() []string
	// AccessFor resolves the access level a named role has on module
	AccessFor(ctx context.Context, roleName, module string) (domain.AccessLevel, error)
	EnsureAdministrator(ctx context.Context) (*domain.Role, error)
}

// SettingsService defines the application service port for tenant settings
type SettingsService interface {
	GetBranding(ctx context.Context) (*domain.Branding, error)
	UpdateBranding(ctx context.Context, b *domain.Branding) error
	GetNotifications(ctx context.Context) (*domain.NotificationSettings, error)
	UpdateNotifications(ctx context.Context, n *domain.NotificationSettings) error
}

// BackupService defines the application service port for tenant backups
type BackupService interface {
	Request(ctx context.Context, requestedBy string) (*domain.BackupRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.BackupRecord, error)
	History(ctx context.Context, limit int) ([]*domain.BackupRecord, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *domain.BackupRecord, error)
	Run(ctx context.Context, id uuid.UUID) error
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}
