// internal/core/domain/settings.go
package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Branding controls how the tenant appears on documents
type Branding struct {
	CompanyName    string    `json:"company_name"`
	LogoURL        string    `json:"logo_url,omitempty"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	InvoiceFooter  string    `json:"invoice_footer,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultBranding is returned before a tenant saves its own
func DefaultBranding() *Branding {
	return &Branding{
		CompanyName:    "My Company",
		PrimaryColor:   "#2563eb",
		SecondaryColor: "#64748b",
	}
}

// Validate checks branding fields
func (b *Branding) Validate() error {
	b.CompanyName = strings.TrimSpace(b.CompanyName)
	if b.CompanyName == "" {
		return ValidationError("company_name is required")
	}
	if b.PrimaryColor == "" {
		b.PrimaryColor = DefaultBranding().PrimaryColor
	}
	if b.SecondaryColor == "" {
		b.SecondaryColor = DefaultBranding().SecondaryColor
	}
	if !hexColor.MatchString(b.PrimaryColor) {
		return ValidationError("primary_color %q must be a hex color", b.PrimaryColor)
	}
	if !hexColor.MatchString(b.SecondaryColor) {
		return ValidationError("secondary_color %q must be a hex color", b.SecondaryColor)
	}
	return nil
}

// NotificationSettings controls which e-mails the system sends
type NotificationSettings struct {
	EmailEnabled          bool      `json:"email_enabled"`
	InvoiceReminders      bool      `json:"invoice_reminders"`
	LeadAssignment        bool      `json:"lead_assignment"`
	BackupAlerts          bool      `json:"backup_alerts"`
	ReminderDaysBeforeDue int       `json:"reminder_days_before_due"`
	Recipients            []string  `json:"recipients"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DefaultNotificationSettings is returned before a tenant saves its own
func DefaultNotificationSettings() *NotificationSettings {
	return &NotificationSettings{
		EmailEnabled:          true,
		InvoiceReminders:      true,
		LeadAssignment:        true,
		BackupAlerts:          true,
		ReminderDaysBeforeDue: 3,
		Recipients:            []string{},
	}
}

// Validate checks notification settings
func (n *NotificationSettings) Validate() error {
	if n.ReminderDaysBeforeDue < 0 || n.ReminderDaysBeforeDue > 90 {
		return ValidationError("reminder_days_before_due must be between 0 and 90")
	}
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	for _, r := range n.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return ValidationError("recipient %q is invalid", r)
		}
	}
	return nil
}

// BackupStatus tracks a backup job
type BackupStatus string

// Backup status constants
const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusRunning   BackupStatus = "running"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// IsFinal reports whether the job has stopped
func (s BackupStatus) IsFinal() bool {
	return s == BackupStatusCompleted || s == BackupStatusFailed
}

// BackupRecord is one entry of the backup history
type BackupRecord struct {
	ID          uuid.UUID    `json:"id"`
	Status      BackupStatus `json:"status"`
	StorageKey  string       `json:"storage_key,omitempty"`
	SizeBytes   int64        `json:"size_bytes"`
	Checksum    string       `json:"checksum,omitempty"`
	Error       string       `json:"error,omitempty"`
	RequestedBy string       `json:"requested_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewBackupRecord creates a pending backup
func NewBackupRecord(requestedBy string) *BackupRecord {
	return &BackupRecord{
		ID:          uuid.New(),
		Status:      BackupStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// BackupStorageKey is where the archive for id is stored
func BackupStorageKey(id uuid.UUID) string {
	return "backups/" + id.String() + ".zip"
}

// BackupEvent is published whenever a backup changes status
type BackupEvent struct {
	BackupID  uuid.UUID    `json:"backup_id"`
	Status    BackupStatus `json:"status"`
	SizeBytes int64        `json:"size_bytes,omitempty"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}

// EventFor builds the event describing the record's current state
func (b *BackupRecord) EventFor() BackupEvent {
	return BackupEvent{
		BackupID:  b.ID,
		Status:    b.Status,
		SizeBytes: b.SizeBytes,
		Error:     b.Error,
		At:        time.Now().UTC(),
	}
}
