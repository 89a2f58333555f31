// internal/adapters/db/settings_repository.go
package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// Keys of the settings documents
const (
	settingsKeyBranding      = "branding"
	settingsKeyNotifications = "notifications"
)

// settingsRepository stores each settings group as one JSONB document
type settingsRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *Database, logger *slog.Logger) ports.SettingsRepository {
	return &settingsRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "settings")),
	}
}

func (r *settingsRepository) load(ctx context.Context, key string, dest any) error {
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(dest)
	return mapError("load "+key+" settings", err)
}

func (r *settingsRepository) save(ctx context.Context, key string, value any, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, at)
	if err != nil {
		return mapError("save "+key+" settings", err)
	}
	r.logger.InfoContext(ctx, "settings saved", slog.String("key", key))
	return nil
}

func (r *settingsRepository) GetBranding(ctx context.Context) (*domain.Branding, error) {
	b := &domain.Branding{}
	if err := r.load(ctx, settingsKeyBranding, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *settingsRepository) SaveBranding(ctx context.Context, b *domain.Branding) error {
	return r.save(ctx, settingsKeyBranding, b, b.UpdatedAt)
}

func (r *settingsRepository) GetNotifications(ctx context.Context) (*domain.NotificationSettings, error) {
	n := &domain.NotificationSettings{}
	if err := r.load(ctx, settingsKeyNotifications, n); err != nil {
		return nil, err
	}
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	return n, nil
}

func (r *settingsRepository) SaveNotifications(ctx context.Context, n *domain.NotificationSettings) error {
	return r.save(ctx, settingsKeyNotifications, n, n.UpdatedAt)
}
