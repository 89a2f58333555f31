// internal/core/services/backup.go
package services

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
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
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	backupFormatVersion = 1
)

// BackupSources are the repositories a backup archive is built from
type BackupSources struct {
	Invoices  ports.InvoiceRepository
	Leads     ports.LeadRepository
	Roles     ports.RoleRepository
	Employees ports.EmployeeRepository
	Settings  ports.SettingsRepository
}

// BackupService builds tenant backups and tracks their history
type BackupService struct {
	repo    ports.BackupRepository
	sources BackupSources
	storage ports.ObjectStorage
	queue   ports.TaskQueue
	events  ports.EventBus
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.BackupService = (*BackupService)(nil)

// NewBackupService creates a new backup service
func NewBackupService(
	repo ports.BackupRepository,
	sources BackupSources,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	events ports.EventBus,
	logger *slog.Logger,
) *BackupService {
	return &BackupService{
		repo:    repo,
		sources: sources,
		storage: storage,
		queue:   queue,
		events:  events,
		logger:  logger.With(slog.String("service", "backup")),
		now:     time.Now,
	}
}

// Request records a pending backup and queues it
func (s *BackupService) Request(ctx context.Context, requestedBy string) (*domain.BackupRecord, error) {
	rec := domain.NewBackupRecord(requestedBy)
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record backup: %w", err)
	}

	if _, err := s.queue.EnqueueBackup(ctx, rec.ID); err != nil {
		s.fail(ctx, rec, fmt.Errorf("failed to queue backup: %w", err))
		return nil, fmt.Errorf("failed to queue backup: %w", err)
	}

	s.publish(ctx, rec)
	s.logger.InfoContext(ctx, "backup requested",
		slog.String("backup_id", rec.ID.String()),
		slog.String("requested_by", requestedBy))
	return rec, nil
}

// Get retrieves one backup record
func (s *BackupService) Get(ctx context.Context, id uuid.UUID) (*domain.BackupRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup %s: %w", id, err)
	}
	return rec, nil
}

// History lists the most recent backups first
func (s *BackupService) History(ctx context.Context, limit int) ([]*domain.BackupRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return records, nil
}

// Open streams a completed backup archive
func (s *BackupService) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *domain.BackupRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get backup %s: %w", id, err)
	}
	if rec.Status != domain.BackupStatusCompleted {
		return nil, nil, fmt.Errorf("%w: backup %s is %s", domain.ErrConflict, id, rec.Status)
	}

	rc, err := s.storage.Download(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backup archive: %w", err)
	}
	return rc, rec, nil
}

// Run builds the archive for a pending backup. A backup that already
// finished is left alone.
func (s *BackupService) Run(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get backup %s: %w", id, err)
	}
	if rec.Status.IsFinal() {
		s.logger.InfoContext(ctx, "backup already finished",
			slog.String("backup_id", id.String()),
			slog.String("status", string(rec.Status)))
		return nil
	}

	started := s.now().UTC()
	rec.Status = domain.BackupStatusRunning
	rec.StartedAt = &started
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark backup running: %w", err)
	}
	s.publish(ctx, rec)

	archive, err := s.buildArchive(ctx, rec)
	if err != nil {
		s.fail(ctx, rec, err)
		return err
	}

	sum := sha256.Sum256(archive)
	key := domain.BackupStorageKey(rec.ID)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(archive), "application/zip"); err != nil {
		err = fmt.Errorf("failed to upload backup: %w", err)
		s.fail(ctx, rec, err)
		return err
	}

	completed := s.now().UTC()
	rec.Status = domain.BackupStatusCompleted
	rec.StorageKey = key
	rec.SizeBytes = int64(len(archive))
	rec.Checksum = hex.EncodeToString(sum[:])
	rec.CompletedAt = &completed
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark backup completed: %w", err)
	}
	s.publish(ctx, rec)

	s.logger.InfoContext(ctx, "backup completed",
		slog.String("backup_id", rec.ID.String()),
		slog.Int64("size_bytes", rec.SizeBytes),
		slog.Duration("duration", completed.Sub(started)))
	return nil
}

// Cleanup deletes completed backups older than retention
func (s *BackupService) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-retention)
	records, err := s.repo.ListCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired backups: %w", err)
	}

	removed := 0
	for _, rec := range records {
		if rec.StorageKey != "" {
			if err := s.storage.Delete(ctx, rec.StorageKey); err != nil {
				s.logger.WarnContext(ctx, "failed to delete backup archive",
					slog.String("backup_id", rec.ID.String()),
					slog.String("error", err.Error()))
				continue
			}
		}
		if err := s.repo.Delete(ctx, rec.ID); err != nil {
			return removed, fmt.Errorf("failed to delete backup record %s: %w", rec.ID, err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "removed expired backups",
			slog.Int("count", removed),
			slog.Time("cutoff", cutoff))
	}
	return removed, nil
}

type backupManifest struct {
	BackupID  uuid.UUID      `json:"backup_id"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Counts    map[string]int `json:"counts"`
}

type settingsSnapshot struct {
	Branding      *domain.Branding             `json:"branding"`
	Notifications *domain.NotificationSettings `json:"notifications"`
}

func (s *BackupService) buildArchive(ctx context.Context, rec *domain.BackupRecord) ([]byte, error) {
	invoices, err := s.sources.Invoices.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	leads, err := s.sources.Leads.ListAll(ctx, domain.LeadFilter{}, domain.ListParams{SortBy: "created_at", SortOrder: domain.SortAsc})
	if err != nil {
		return nil, fmt.Errorf("failed to read leads: %w", err)
	}
	roles, err := s.sources.Roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	employees, err := s.sources.Employees.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read employees: %w", err)
	}
	settings, err := s.snapshotSettings(ctx)
	if err != nil {
		return nil, err
	}

	manifest := backupManifest{
		BackupID:  rec.ID,
		Version:   backupFormatVersion,
		CreatedAt: s.now().UTC(),
		Counts: map[string]int{
			"invoices":  len(invoices),
			"leads":     len(leads),
			"roles":     len(roles),
			"employees": len(employees),
		},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name  string
		value any
	}{
		{"manifest.json", manifest},
		{"invoices.json", invoices},
		{"leads.json", leads},
		{"roles.json", roles},
		{"employees.json", employees},
		{"settings.json", settings},
	}
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(e.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *BackupService) snapshotSettings(ctx context.Context) (*settingsSnapshot, error) {
	snap := &settingsSnapshot{}

	b, err := s.sources.Settings.GetBranding(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		snap.Branding = domain.DefaultBranding()
	case err != nil:
		return nil, fmt.Errorf("failed to read branding: %w", err)
	default:
		snap.Branding = b
	}

	n, err := s.sources.Settings.GetNotifications(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		snap.Notifications = domain.DefaultNotificationSettings()
	case err != nil:
		return nil, fmt.Errorf("failed to read notification settings: %w", err)
	default:
		snap.Notifications = n
	}
	return snap, nil
}

func (s *BackupService) fail(ctx context.Context, rec *domain.BackupRecord, cause error) {
	now := s.now().UTC()
	rec.Status = domain.BackupStatusFailed
	rec.Error = cause.Error()
	rec.CompletedAt = &now
	if err := s.repo.Update(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark backup failed",
			slog.String("backup_id", rec.ID.String()),
			slog.String("error", err.Error()))
	}
	s.publish(ctx, rec)
	s.logger.ErrorContext(ctx, "backup failed",
		slog.String("backup_id", rec.ID.String()),
		slog.String("error", cause.Error()))
}

func (s *BackupService) publish(ctx context.Context, rec *domain.BackupRecord) {
	if err := s.events.PublishBackupEvent(ctx, rec.EventFor()); err != nil {
		s.logger.WarnContext(ctx, "failed to publish backup event",
			slog.String("backup_id", rec.ID.String()),
			slog.String("error", err.Error()))
	}
}
