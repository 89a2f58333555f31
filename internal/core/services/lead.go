// internal/core/services/lead.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const (
	leadStatsCacheKey = "erp:leads:stats"
	leadStatsCacheTTL = 5 * time.Minute
)

// LeadService handles lead business logic
type LeadService struct {
	repo      ports.LeadRepository
	employees ports.EmployeeRepository
	settings  ports.SettingsRepository
	queue     ports.TaskQueue
	cache     ports.CacheRepository
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.LeadService = (*LeadService)(nil)

// NewLeadService creates a new lead service
func NewLeadService(
	repo ports.LeadRepository,
	employees ports.EmployeeRepository,
	settings ports.SettingsRepository,
	queue ports.TaskQueue,
	cache ports.CacheRepository,
	logger *slog.Logger,
) *LeadService {
	return &LeadService{
		repo:      repo,
		employees: employees,
		settings:  settings,
		queue:     queue,
		cache:     cache,
		logger:    logger.With(slog.String("service", "lead")),
		now:       time.Now,
	}
}

// Create validates and stores a new lead
func (s *LeadService) Create(ctx context.Context, lead *domain.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}

	assignee, err := s.resolveAssignee(ctx, lead.AssignedTo)
	if err != nil {
		return err
	}

	lead.PrepareForStorage()
	if err := s.repo.Create(ctx, lead); err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	s.logger.InfoContext(ctx, "created lead",
		slog.String("lead_id", lead.ID.String()),
		slog.String("company", lead.Company))

	s.invalidateStats(ctx)
	if assignee != nil {
		lead.AssigneeName = assignee.Name
		s.notifyAssignment(ctx, lead, assignee)
	}
	return nil
}

// Get retrieves a lead by ID
func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return lead, nil
}

// Update replaces a lead's fields
func (s *LeadService) Update(ctx context.Context, id uuid.UUID, lead *domain.Lead) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get lead %s: %w", id, err)
	}

	lead.ID = id
	lead.CreatedAt = existing.CreatedAt
	if err := lead.Validate(); err != nil {
		return err
	}

	assignee, err := s.resolveAssignee(ctx, lead.AssignedTo)
	if err != nil {
		return err
	}

	lead.PrepareForStorage()
	if err := s.repo.Update(ctx, lead); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	s.logger.InfoContext(ctx, "updated lead",
		slog.String("lead_id", id.String()),
		slog.String("status", string(lead.Status)))

	s.invalidateStats(ctx)
	if assignee != nil {
		lead.AssigneeName = assignee.Name
		if !sameAssignee(existing.AssignedTo, lead.AssignedTo) {
			s.notifyAssignment(ctx, lead, assignee)
		}
	}
	return nil
}

// Delete soft-deletes a lead
func (s *LeadService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "deleted lead", slog.String("lead_id", id.String()))
	s.invalidateStats(ctx)
	return nil
}

// List returns a page of leads
func (s *LeadService) List(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) (*domain.Page[*domain.Lead], error) {
	params.Normalize()

	items, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return domain.NewPage(items, params, total), nil
}

// Stats returns pipeline statistics, served from cache when fresh
func (s *LeadService) Stats(ctx context.Context) (*domain.LeadStats, error) {
	var stats domain.LeadStats
	err := s.cache.GetOrSet(ctx, leadStatsCacheKey, &stats, func() (interface{}, error) {
		return s.computeStats(ctx)
	}, leadStatsCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead stats: %w", err)
	}
	return &stats, nil
}

// RefreshStats recomputes pipeline statistics and replaces the cached copy
func (s *LeadService) RefreshStats(ctx context.Context) (*domain.LeadStats, error) {
	stats, err := s.computeStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lead stats: %w", err)
	}
	if err := s.cache.SetWithTTL(ctx, leadStatsCacheKey, stats, leadStatsCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache lead stats", slog.String("error", err.Error()))
	}
	return stats, nil
}

// Employees lists staff that leads can be assigned to
func (s *LeadService) Employees(ctx context.Context) ([]*domain.Employee, error) {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// Export returns every lead matching filter in the requested order
func (s *LeadService) Export(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, error) {
	params.Normalize()

	leads, err := s.repo.ListAll(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("failed to export leads: %w", err)
	}

	s.logger.InfoContext(ctx, "exported leads", slog.Int("count", len(leads)))
	return leads, nil
}

func (s *LeadService) computeStats(ctx context.Context) (*domain.LeadStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.ComputeConversionRate()
	stats.GeneratedAt = s.now().UTC()
	return stats, nil
}

func (s *LeadService) resolveAssignee(ctx context.Context, id *uuid.UUID) (*domain.Employee, error) {
	if id == nil {
		return nil, nil
	}
	employee, err := s.employees.FindByID(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ValidationError("assigned_to %s is not a known employee", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up employee: %w", err)
	}
	if !employee.Active {
		return nil, domain.ValidationError("employee %s is inactive", employee.Name)
	}
	return employee, nil
}

func (s *LeadService) notifyAssignment(ctx context.Context, lead *domain.Lead, assignee *domain.Employee) {
	prefs, err := s.settings.GetNotifications(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		prefs = domain.DefaultNotificationSettings()
	} else if err != nil {
		s.logger.WarnContext(ctx, "failed to load notification settings", slog.String("error", err.Error()))
		return
	}
	if !prefs.EmailEnabled || !prefs.LeadAssignment || assignee.Email == "" {
		return
	}

	email := ports.Email{
		To:      []string{assignee.Email},
		Subject: fmt.Sprintf("New lead assigned: %s", lead.Company),
		Body: fmt.Sprintf("Hi %s,\n\nThe lead %s (%s) has been assigned to you with %s priority.\n",
			assignee.Name, lead.Company, lead.Email, lead.Priority),
	}
	if _, err := s.queue.EnqueueNotification(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to queue assignment notification",
			slog.String("lead_id", lead.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *LeadService) invalidateStats(ctx context.Context) {
	if err := s.cache.Delete(ctx, leadStatsCacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate lead stats", slog.String("error", err.Error()))
	}
}

func sameAssignee(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
