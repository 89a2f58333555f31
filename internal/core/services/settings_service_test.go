// internal/core/services/settings_service_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/services"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

func TestSettingsService_Branding(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSettingsRepository(ctrl)
	svc := services.NewSettingsService(repo, helpers.TestLogger())
	ctx := context.Background()

	repo.EXPECT().GetBranding(gomock.Any()).Return(nil, domain.ErrNotFound)
	b, err := svc.GetBranding(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBranding().CompanyName, b.CompanyName)

	repo.EXPECT().GetBranding(gomock.Any()).Return(nil, errors.New("boom"))
	_, err = svc.GetBranding(ctx)
	assert.Error(t, err)

	repo.EXPECT().SaveBranding(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b *domain.Branding) error {
			assert.False(t, b.UpdatedAt.IsZero())
			return nil
		})
	require.NoError(t, svc.UpdateBranding(ctx, &domain.Branding{CompanyName: "Acme", PrimaryColor: "#fff"}))

	err = svc.UpdateBranding(ctx, &domain.Branding{CompanyName: "Acme", PrimaryColor: "red"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettingsService_Notifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSettingsRepository(ctrl)
	svc := services.NewSettingsService(repo, helpers.TestLogger())
	ctx := context.Background()

	repo.EXPECT().GetNotifications(gomock.Any()).Return(nil, domain.ErrNotFound)
	n, err := svc.GetNotifications(ctx)
	require.NoError(t, err)
	assert.True(t, n.EmailEnabled)

	repo.EXPECT().SaveNotifications(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, svc.UpdateNotifications(ctx, &domain.NotificationSettings{
		ReminderDaysBeforeDue: 5,
		Recipients:            []string{"ops@acme.test"},
	}))

	err = svc.UpdateNotifications(ctx, &domain.NotificationSettings{ReminderDaysBeforeDue: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
