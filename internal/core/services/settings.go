// internal/core/services/settings.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// SettingsService manages tenant branding and notification preferences
type SettingsService struct {
	repo   ports.SettingsRepository
	logger *slog.Logger
}

var _ ports.SettingsService = (*SettingsService)(nil)

// NewSettingsService creates a new settings service
func NewSettingsService(repo ports.SettingsRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		logger: logger.With(slog.String("service", "settings")),
	}
}

// GetBranding returns saved branding or the defaults
func (s *SettingsService) GetBranding(ctx context.Context) (*domain.Branding, error) {
	b, err := s.repo.GetBranding(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultBranding(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branding: %w", err)
	}
	return b, nil
}

// UpdateBranding validates and saves branding
func (s *SettingsService) UpdateBranding(ctx context.Context, b *domain.Branding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveBranding(ctx, b); err != nil {
		return fmt.Errorf("failed to save branding: %w", err)
	}
	s.logger.InfoContext(ctx, "updated branding", slog.String("company_name", b.CompanyName))
	return nil
}

// GetNotifications returns saved notification settings or the defaults
func (s *SettingsService) GetNotifications(ctx context.Context) (*domain.NotificationSettings, error) {
	n, err := s.repo.GetNotifications(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultNotificationSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}
	return n, nil
}

// UpdateNotifications validates and saves notification settings
func (s *SettingsService) UpdateNotifications(ctx context.Context, n *domain.NotificationSettings) error {
	if err := n.Validate(); err != nil {
		return err
	}
	n.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveNotifications(ctx, n); err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	s.logger.InfoContext(ctx, "updated notification settings",
		slog.Int("recipients", len(n.Recipients)))
	return nil
}
