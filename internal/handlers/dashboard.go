// internal/handlers/dashboard.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const (
	dashboardTTL     = time.Minute
	recentBackupsMax = 5
)

// DashboardHandler serves the landing page summary
type DashboardHandler struct {
	responder
	invoices ports.InvoiceService
	leads    ports.LeadService
	backups  ports.BackupService
	cache    ports.CacheRepository
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	invoices ports.InvoiceService,
	leads ports.LeadService,
	backups ports.BackupService,
	cache ports.CacheRepository,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		responder: responder{logger: logger.With(slog.String("handler", "dashboard"))},
		invoices:  invoices,
		leads:     leads,
		backups:   backups,
		cache:     cache,
	}
}

// DashboardData is the cached dashboard payload
type DashboardData struct {
	Invoices      InvoiceOverview        `json:"invoices"`
	Leads         *domain.LeadStats      `json:"leads"`
	RecentBackups []*domain.BackupRecord `json:"recent_backups"`
	Timestamp     time.Time              `json:"timestamp"`
}

// InvoiceOverview summarises invoices by status
type InvoiceOverview struct {
	Count       int64                                               `json:"count"`
	Outstanding decimal.Decimal                                     `json:"outstanding"`
	Collected   decimal.Decimal                                     `json:"collected"`
	ByStatus    map[domain.InvoiceStatus]ports.InvoiceStatusSummary `json:"by_status"`
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dashboard DashboardData
	key := redis_a.BuildKey(redis_a.PrefixDashboard, "main")
	err := h.cache.GetOrSet(ctx, key, &dashboard, func() (interface{}, error) {
		return h.loadDashboardData(ctx)
	}, dashboardTTL)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load dashboard")
		return
	}
	h.respondJSON(w, http.StatusOK, dashboard)
}

func (h *DashboardHandler) loadDashboardData(ctx context.Context) (*DashboardData, error) {
	var (
		summary map[domain.InvoiceStatus]ports.InvoiceStatusSummary
		stats   *domain.LeadStats
		backups []*domain.BackupRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if summary, err = h.invoices.Summary(gctx); err != nil {
			return fmt.Errorf("invoice summary: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if stats, err = h.leads.Stats(gctx); err != nil {
			return fmt.Errorf("lead stats: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if backups, err = h.backups.History(gctx, recentBackupsMax); err != nil {
			return fmt.Errorf("backup history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []*domain.BackupRecord{}
	}

	return &DashboardData{
		Invoices:      overview(summary),
		Leads:         stats,
		RecentBackups: backups,
		Timestamp:     time.Now().UTC(),
	}, nil
}

func overview(summary map[domain.InvoiceStatus]ports.InvoiceStatusSummary) InvoiceOverview {
	o := InvoiceOverview{ByStatus: summary}
	for status, s := range summary {
		o.Count += s.Count
		switch status {
		case domain.InvoiceStatusPaid:
			o.Collected = o.Collected.Add(s.Amount)
		case domain.InvoiceStatusUnpaid, domain.InvoiceStatusOverdue:
			o.Outstanding = o.Outstanding.Add(s.Amount)
		}
	}
	return o
}
