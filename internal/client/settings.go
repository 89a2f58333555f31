package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// DefaultPollInterval is used by PollBackup when no interval is given
const DefaultPollInterval = 2 * time.Second

// ErrBackupFailed is returned by PollBackup when the job ends in failure
var ErrBackupFailed = errors.New("backup failed")

// Settings is the settings gateway
type Settings struct {
	c *Client
}

// GetBranding fetches the branding settings
func (g *Settings) GetBranding(ctx context.Context) (*domain.Branding, error) {
	var out domain.Branding
	if err := g.c.do(ctx, "fetch branding", http.MethodGet, "/settings/branding", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBranding saves the branding settings
func (g *Settings) UpdateBranding(ctx context.Context, b *domain.Branding) (*domain.Branding, error) {
	var out domain.Branding
	if err := g.c.do(ctx, "update branding", http.MethodPut, "/settings/branding", nil, b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNotifications fetches the notification settings
func (g *Settings) GetNotifications(ctx context.Context) (*domain.NotificationSettings, error) {
	var out domain.NotificationSettings
	if err := g.c.do(ctx, "fetch notification settings", http.MethodGet, "/settings/notifications", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNotifications saves the notification settings
func (g *Settings) UpdateNotifications(ctx context.Context, n *domain.NotificationSettings) (*domain.NotificationSettings, error) {
	var out domain.NotificationSettings
	if err := g.c.do(ctx, "update notification settings", http.MethodPut, "/settings/notifications", nil, n, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartBackup requests a new backup job
func (g *Settings) StartBackup(ctx context.Context) (*domain.BackupRecord, error) {
	var out domain.BackupRecord
	if err := g.c.do(ctx, "start backup", http.MethodPost, "/settings/backup", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BackupHistory fetches the most recent backups, newest first. A limit of
// zero uses the server default.
func (g *Settings) BackupHistory(ctx context.Context, limit int) ([]*domain.BackupRecord, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []*domain.BackupRecord
	if err := g.c.do(ctx, "fetch backup history", http.MethodGet, "/settings/backup/history", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBackup fetches one backup record
func (g *Settings) GetBackup(ctx context.Context, id uuid.UUID) (*domain.BackupRecord, error) {
	var out domain.BackupRecord
	if err := g.c.do(ctx, "fetch backup", http.MethodGet, "/settings/backup/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollBackup re-reads the backup every interval until it completes or fails.
// A failed job returns the record together with ErrBackupFailed.
func (g *Settings) PollBackup(ctx context.Context, id uuid.UUID, interval time.Duration) (*domain.BackupRecord, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rec, err := g.GetBackup(ctx, id)
		if err != nil {
			return nil, err
		}
		switch rec.Status {
		case domain.BackupStatusCompleted:
			return rec, nil
		case domain.BackupStatusFailed:
			return rec, fmt.Errorf("%w: %s", ErrBackupFailed, rec.Error)
		}

		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadBackup fetches the archive of a completed backup
func (g *Settings) DownloadBackup(ctx context.Context, id uuid.UUID) (*Download, error) {
	return g.c.download(ctx, "download backup", "/settings/backup/"+id.String()+"/download", nil, "backup-"+id.String()+".zip")
}
