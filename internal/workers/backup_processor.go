// internal/workers/backup_processor.go
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

// BackupProcessor builds tenant archives and prunes expired ones
type BackupProcessor struct {
	backups   ports.BackupService
	settings  ports.SettingsService
	mailer    ports.Mailer
	retention time.Duration
	logger    *slog.Logger
}

// NewBackupProcessor creates a new backup processor
func NewBackupProcessor(
	backups ports.BackupService,
	settings ports.SettingsService,
	mailer ports.Mailer,
	retention time.Duration,
	logger *slog.Logger,
) *BackupProcessor {
	return &BackupProcessor{
		backups:   backups,
		settings:  settings,
		mailer:    mailer,
		retention: retention,
		logger:    logger.With(slog.String("processor", "backup")),
	}
}

// CreateBackup runs a pending backup. Failures are recorded on the backup
// record by the service, so the task itself never retries.
func (p *BackupProcessor) CreateBackup(ctx context.Context, t *asynq.Task) error {
	var payload BackupPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	start := time.Now()
	p.logger.InfoContext(ctx, "running backup", slog.String("backup_id", payload.BackupID.String()))

	if err := p.backups.Run(ctx, payload.BackupID); err != nil {
		p.logger.ErrorContext(ctx, "backup failed",
			slog.String("backup_id", payload.BackupID.String()),
			slog.String("error", err.Error()))
		p.alert(ctx, payload.BackupID.String(), err)
		return fmt.Errorf("backup %s: %v: %w", payload.BackupID, err, asynq.SkipRetry)
	}

	p.logger.InfoContext(ctx, "backup completed",
		slog.String("backup_id", payload.BackupID.String()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// CleanupBackups deletes archives older than the retention window
func (p *BackupProcessor) CleanupBackups(ctx context.Context, t *asynq.Task) error {
	removed, err := p.backups.Cleanup(ctx, p.retention)
	if err != nil {
		return fmt.Errorf("failed to clean up backups: %w", err)
	}

	p.logger.InfoContext(ctx, "expired backups removed",
		slog.Int("removed", removed),
		slog.Duration("retention", p.retention))
	return nil
}

func (p *BackupProcessor) alert(ctx context.Context, backupID string, cause error) {
	prefs, err := p.settings.GetNotifications(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		prefs = domain.DefaultNotificationSettings()
	} else if err != nil {
		p.logger.WarnContext(ctx, "failed to load notification settings", slog.String("error", err.Error()))
		return
	}
	if !prefs.EmailEnabled || !prefs.BackupAlerts || len(prefs.Recipients) == 0 {
		return
	}

	err = p.mailer.Send(ctx, ports.Email{
		To:      prefs.Recipients,
		Subject: "Backup failed",
		Body:    fmt.Sprintf("Backup %s failed: %s\n", backupID, cause),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to send backup alert", slog.String("error", err.Error()))
	}
}
