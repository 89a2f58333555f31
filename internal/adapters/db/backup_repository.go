// internal/adapters/db/backup_repository.go
package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const backupSelect = `
	SELECT id, status, storage_key, size_bytes, checksum, error, requested_by,
	       created_at, started_at, completed_at
	FROM backups`

type backupRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewBackupRepository creates a new backup history repository
func NewBackupRepository(db *Database, logger *slog.Logger) ports.BackupRepository {
	return &backupRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "backup")),
	}
}

func scanBackup(row pgx.Row) (*domain.BackupRecord, error) {
	b := &domain.BackupRecord{}
	err := row.Scan(&b.ID, &b.Status, &b.StorageKey, &b.SizeBytes, &b.Checksum, &b.Error,
		&b.RequestedBy, &b.CreatedAt, &b.StartedAt, &b.CompletedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *backupRepository) Create(ctx context.Context, rec *domain.BackupRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO backups (id, status, storage_key, size_bytes, checksum, error, requested_by,
		                     created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Status, rec.StorageKey, rec.SizeBytes, rec.Checksum, rec.Error, rec.RequestedBy,
		rec.CreatedAt, rec.StartedAt, rec.CompletedAt)
	return mapError("create backup", err)
}

func (r *backupRepository) Update(ctx context.Context, rec *domain.BackupRecord) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE backups SET status = $2, storage_key = $3, size_bytes = $4, checksum = $5,
		                   error = $6, started_at = $7, completed_at = $8
		WHERE id = $1`,
		rec.ID, rec.Status, rec.StorageKey, rec.SizeBytes, rec.Checksum,
		rec.Error, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return mapError("update backup", err)
	}
	return expectOne(tag, "update backup")
}

func (r *backupRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BackupRecord, error) {
	b, err := scanBackup(r.db.QueryRow(ctx, backupSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("find backup", err)
	}
	return b, nil
}

// List returns the newest backups first
func (r *backupRepository) List(ctx context.Context, limit int) ([]*domain.BackupRecord, error) {
	rows, err := r.db.Query(ctx, backupSelect+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapError("list backups", err)
	}
	return collect(rows, scanBackup)
}

func (r *backupRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*domain.BackupRecord, error) {
	rows, err := r.db.Query(ctx,
		backupSelect+` WHERE status = $1 AND completed_at < $2 ORDER BY completed_at`,
		domain.BackupStatusCompleted, cutoff)
	if err != nil {
		return nil, mapError("list expired backups", err)
	}
	return collect(rows, scanBackup)
}

func (r *backupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM backups WHERE id = $1`, id)
	if err != nil {
		return mapError("delete backup", err)
	}
	return expectOne(tag, "delete backup")
}
