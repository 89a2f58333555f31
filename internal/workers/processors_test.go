// internal/workers/processors_test.go
package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/pkg/config"
	"github.com/ammerola/erp-admin/internal/workers"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

func TestBackupProcessor_CreateBackup(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backups := mocks.NewMockBackupService(ctrl)
		id := uuid.New()
		backups.EXPECT().Run(gomock.Any(), id).Return(nil)

		p := workers.NewBackupProcessor(backups, mocks.NewMockSettingsService(ctrl), mocks.NewMockMailer(ctrl), time.Hour, helpers.TestLogger())
		task, err := workers.NewBackupTask(id)
		require.NoError(t, err)
		assert.NoError(t, p.CreateBackup(context.Background(), task))
	})

	t.Run("failure_alerts_and_skips_retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backups := mocks.NewMockBackupService(ctrl)
		settings := mocks.NewMockSettingsService(ctrl)
		mailer := mocks.NewMockMailer(ctrl)
		id := uuid.New()

		backups.EXPECT().Run(gomock.Any(), id).Return(errors.New("storage unavailable"))
		settings.EXPECT().GetNotifications(gomock.Any()).Return(&domain.NotificationSettings{
			EmailEnabled: true,
			BackupAlerts: true,
			Recipients:   []string{"ops@example.com"},
		}, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e ports.Email) error {
			assert.Equal(t, []string{"ops@example.com"}, e.To)
			assert.Contains(t, e.Body, "storage unavailable")
			return nil
		})

		p := workers.NewBackupProcessor(backups, settings, mailer, time.Hour, helpers.TestLogger())
		task, err := workers.NewBackupTask(id)
		require.NoError(t, err)

		err = p.CreateBackup(context.Background(), task)
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("alerts_disabled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backups := mocks.NewMockBackupService(ctrl)
		settings := mocks.NewMockSettingsService(ctrl)
		id := uuid.New()

		backups.EXPECT().Run(gomock.Any(), id).Return(errors.New("boom"))
		settings.EXPECT().GetNotifications(gomock.Any()).Return(&domain.NotificationSettings{EmailEnabled: false}, nil)

		p := workers.NewBackupProcessor(backups, settings, mocks.NewMockMailer(ctrl), time.Hour, helpers.TestLogger())
		task, err := workers.NewBackupTask(id)
		require.NoError(t, err)
		assert.Error(t, p.CreateBackup(context.Background(), task))
	})

	t.Run("malformed_payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		p := workers.NewBackupProcessor(mocks.NewMockBackupService(ctrl), mocks.NewMockSettingsService(ctrl), mocks.NewMockMailer(ctrl), time.Hour, helpers.TestLogger())

		err := p.CreateBackup(context.Background(), asynq.NewTask(workers.TypeBackupCreate, []byte("{not json")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestBackupProcessor_CleanupBackups(t *testing.T) {
	ctrl := gomock.NewController(t)
	backups := mocks.NewMockBackupService(ctrl)
	backups.EXPECT().Cleanup(gomock.Any(), 30*24*time.Hour).Return(3, nil)

	p := workers.NewBackupProcessor(backups, mocks.NewMockSettingsService(ctrl), mocks.NewMockMailer(ctrl), 30*24*time.Hour, helpers.TestLogger())
	assert.NoError(t, p.CleanupBackups(context.Background(), asynq.NewTask(workers.TypeBackupCleanup, nil)))
}

func TestInvoiceProcessor_RenderPDF(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"stored", nil, false},
		{"deleted_invoice_is_skipped", domain.ErrNotFound, false},
		{"renderer_failure_retries", errors.New("font missing"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			invoices := mocks.NewMockInvoiceService(ctrl)
			id := uuid.New()
			invoices.EXPECT().RenderAndStorePDF(gomock.Any(), id).Return("invoices/"+id.String()+".pdf", tt.err)

			p := workers.NewInvoiceProcessor(invoices, helpers.TestLogger())
			task, err := workers.NewInvoicePDFTask(id)
			require.NoError(t, err)

			err = p.RenderPDF(context.Background(), task)
			if tt.wantErr {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, asynq.SkipRetry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvoiceProcessor_MarkOverdue(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoices := mocks.NewMockInvoiceService(ctrl)
	invoices.EXPECT().MarkOverdue(gomock.Any(), gomock.Any()).Return(int64(2), nil)

	p := workers.NewInvoiceProcessor(invoices, helpers.TestLogger())
	assert.NoError(t, p.MarkOverdue(context.Background(), asynq.NewTask(workers.TypeInvoiceMarkOverdue, nil)))
}

func TestNotificationProcessor_SendInvoice(t *testing.T) {
	t.Run("defaults_to_client_email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceService(ctrl)
		settings := mocks.NewMockSettingsService(ctrl)
		mailer := mocks.NewMockMailer(ctrl)

		inv := helpers.CreateTestInvoice()
		inv.ClientEmail = "billing@acme.test"
		invoices.EXPECT().PDF(gomock.Any(), inv.ID).Return([]byte("%PDF"), inv, nil)
		settings.EXPECT().GetBranding(gomock.Any()).Return(&domain.Branding{CompanyName: "Northwind"}, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e ports.Email) error {
			assert.Equal(t, []string{"billing@acme.test"}, e.To)
			assert.Contains(t, e.Subject, inv.InvoiceNumber)
			assert.Contains(t, e.Subject, "Northwind")
			require.Len(t, e.Attachments, 1)
			assert.Equal(t, inv.InvoiceNumber+".pdf", e.Attachments[0].Filename)
			assert.Equal(t, []byte("%PDF"), e.Attachments[0].Data)
			return nil
		})

		p := workers.NewNotificationProcessor(invoices, settings, mailer, helpers.TestLogger())
		task, err := workers.NewInvoiceEmailTask(inv.ID, "")
		require.NoError(t, err)
		assert.NoError(t, p.SendInvoice(context.Background(), task))
	})

	t.Run("explicit_recipient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceService(ctrl)
		settings := mocks.NewMockSettingsService(ctrl)
		mailer := mocks.NewMockMailer(ctrl)

		inv := helpers.CreateTestInvoice()
		invoices.EXPECT().PDF(gomock.Any(), inv.ID).Return([]byte("%PDF"), inv, nil)
		settings.EXPECT().GetBranding(gomock.Any()).Return(nil, domain.ErrNotFound)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e ports.Email) error {
			assert.Equal(t, []string{"ap@other.test"}, e.To)
			assert.Contains(t, e.Subject, domain.DefaultBranding().CompanyName)
			return nil
		})

		p := workers.NewNotificationProcessor(invoices, settings, mailer, helpers.TestLogger())
		task, err := workers.NewInvoiceEmailTask(inv.ID, "ap@other.test")
		require.NoError(t, err)
		assert.NoError(t, p.SendInvoice(context.Background(), task))
	})

	t.Run("missing_invoice_skips_retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceService(ctrl)
		id := uuid.New()
		invoices.EXPECT().PDF(gomock.Any(), id).Return(nil, nil, domain.ErrNotFound)

		p := workers.NewNotificationProcessor(invoices, mocks.NewMockSettingsService(ctrl), mocks.NewMockMailer(ctrl), helpers.TestLogger())
		task, err := workers.NewInvoiceEmailTask(id, "")
		require.NoError(t, err)
		assert.ErrorIs(t, p.SendInvoice(context.Background(), task), asynq.SkipRetry)
	})
}

func TestNotificationProcessor_SendEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	email := ports.Email{To: []string{"a@example.com"}, Subject: "Lead assigned", Body: "Initech"}
	mailer.EXPECT().Send(gomock.Any(), email).Return(errors.New("smtp down"))

	p := workers.NewNotificationProcessor(mocks.NewMockInvoiceService(ctrl), mocks.NewMockSettingsService(ctrl), mailer, helpers.TestLogger())
	task, err := workers.NewNotificationTask(email)
	require.NoError(t, err)

	err = p.SendEmail(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestAnalyticsProcessor_RefreshStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	leads := mocks.NewMockLeadService(ctrl)
	stats := domain.NewLeadStats()
	stats.Total = 8
	stats.ConversionRate = decimal.NewFromInt(25)
	leads.EXPECT().RefreshStats(gomock.Any()).Return(stats, nil)

	p := workers.NewAnalyticsProcessor(leads, helpers.TestLogger())
	assert.NoError(t, p.RefreshStats(context.Background(), asynq.NewTask(workers.TypeStatsRefresh, nil)))
}

func TestTaskPayloads(t *testing.T) {
	id := uuid.New()

	task, err := workers.NewInvoiceEmailTask(id, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, workers.TypeEmailInvoice, task.Type())

	var payload workers.InvoicePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id, payload.InvoiceID)
	assert.Equal(t, "x@example.com", payload.To)
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, time.Second, workers.ExponentialBackoff(0, nil, nil))
	assert.Equal(t, 8*time.Second, workers.ExponentialBackoff(3, nil, nil))
	assert.Equal(t, 10*time.Minute, workers.ExponentialBackoff(15, nil, nil))
	assert.Equal(t, 10*time.Minute, workers.ExponentialBackoff(64, nil, nil))
}

func TestSchedule(t *testing.T) {
	cfg := &config.Config{
		Backup:  config.BackupConfig{CleanupSchedule: "0 3 * * *"},
		Invoice: config.InvoiceConfig{OverdueSchedule: "@hourly"},
	}

	tasks := workers.Schedule(cfg)
	byType := map[string]string{}
	for _, st := range tasks {
		byType[st.Task.Type()] = st.Spec
	}
	assert.Equal(t, "0 3 * * *", byType[workers.TypeBackupCleanup])
	assert.Equal(t, "@hourly", byType[workers.TypeInvoiceMarkOverdue])
	assert.Empty(t, byType[workers.TypeStatsRefresh], "unset schedules stay empty and are skipped at registration")
}
