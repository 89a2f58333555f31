// internal/workers/analytics_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/erp-admin/internal/core/ports"
)

// AnalyticsProcessor keeps cached dashboard figures warm
type AnalyticsProcessor struct {
	leads  ports.LeadService
	logger *slog.Logger
}

// NewAnalyticsProcessor creates a new analytics processor
func NewAnalyticsProcessor(leads ports.LeadService, logger *slog.Logger) *AnalyticsProcessor {
	return &AnalyticsProcessor{
		leads:  leads,
		logger: logger.With(slog.String("processor", "analytics")),
	}
}

// RefreshStats recomputes lead statistics and replaces the cached copy
func (p *AnalyticsProcessor) RefreshStats(ctx context.Context, t *asynq.Task) error {
	stats, err := p.leads.RefreshStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh lead stats: %w", err)
	}

	p.logger.InfoContext(ctx, "lead stats refreshed",
		slog.Int64("total", stats.Total),
		slog.String("conversion_rate", stats.ConversionRate.String()))
	return nil
}
