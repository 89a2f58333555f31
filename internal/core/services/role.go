// internal/core/services/role.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const (
	rolePermissionsCachePrefix = "erp:roles:permissions:"
	rolePermissionsCacheTTL    = 5 * time.Minute
)

// RoleService handles role and permission logic
type RoleService struct {
	repo   ports.RoleRepository
	cache  ports.CacheRepository
	logger *slog.Logger
}

var _ ports.RoleService = (*RoleService)(nil)

// NewRoleService creates a new role service
func NewRoleService(repo ports.RoleRepository, cache ports.CacheRepository, logger *slog.Logger) *RoleService {
	return &RoleService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("service", "role")),
	}
}

// Create validates and stores a new role
func (s *RoleService) Create(ctx context.Context, role *domain.Role) error {
	if err := role.Validate(); err != nil {
		return err
	}
	if err := s.ensureNameFree(ctx, role.Name, uuid.Nil); err != nil {
		return err
	}

	role.IsSystem = false
	role.PrepareForStorage()
	if err := s.repo.Create(ctx, role); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}

	// a deleted role of the same name may still have cached permissions
	s.invalidate(ctx, role.Name)
	s.logger.InfoContext(ctx, "created role",
		slog.String("role_id", role.ID.String()),
		slog.String("name", role.Name))
	return nil
}

// Get retrieves a role by ID
func (s *RoleService) Get(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", id, err)
	}
	return role, nil
}

// Update replaces a role's fields. System roles are read-only.
func (s *RoleService) Update(ctx context.Context, id uuid.UUID, role *domain.Role) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get role %s: %w", id, err)
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be modified", domain.ErrForbidden, existing.Name)
	}

	role.ID = id
	role.CreatedAt = existing.CreatedAt
	role.IsSystem = false
	if err := role.Validate(); err != nil {
		return err
	}
	if !strings.EqualFold(role.Name, existing.Name) {
		if err := s.ensureNameFree(ctx, role.Name, id); err != nil {
			return err
		}
	}

	role.PrepareForStorage()
	if err := s.repo.Update(ctx, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.invalidate(ctx, existing.Name, role.Name)
	s.logger.InfoContext(ctx, "updated role", slog.String("role_id", id.String()))
	return nil
}

// Delete removes a role. System roles cannot be deleted.
func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get role %s: %w", id, err)
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", domain.ErrForbidden, existing.Name)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.invalidate(ctx, existing.Name)
	s.logger.InfoContext(ctx, "deleted role",
		slog.String("role_id", id.String()),
		slog.String("name", existing.Name))
	return nil
}

// List returns all roles
func (s *RoleService) List(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// Modules lists the modules permissions apply to
func (s *RoleService) Modules() []string {
	modules := make([]string, len(domain.Modules))
	copy(modules, domain.Modules)
	return modules
}

// AccessFor resolves the access level roleName has on module.
// Unknown roles have no access.
func (s *RoleService) AccessFor(ctx context.Context, roleName, module string) (domain.AccessLevel, error) {
	var perms map[string]domain.AccessLevel
	err := s.cache.GetOrSet(ctx, permissionsCacheKey(roleName), &perms, func() (interface{}, error) {
		role, err := s.repo.FindByName(ctx, roleName)
		if errors.Is(err, domain.ErrNotFound) {
			return map[string]domain.AccessLevel{}, nil
		}
		if err != nil {
			return nil, err
		}
		return role.Permissions, nil
	}, rolePermissionsCacheTTL)
	if err != nil {
		return domain.AccessNone, fmt.Errorf("failed to resolve permissions for %q: %w", roleName, err)
	}

	if level, ok := perms[module]; ok {
		return level, nil
	}
	return domain.AccessNone, nil
}

// EnsureAdministrator creates the built-in Administrator role if missing
func (s *RoleService) EnsureAdministrator(ctx context.Context) (*domain.Role, error) {
	role, err := s.repo.FindByName(ctx, domain.AdministratorRole)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up administrator role: %w", err)
	}

	role = domain.NewAdministratorRole()
	role.PrepareForStorage()
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create administrator role: %w", err)
	}
	s.logger.InfoContext(ctx, "created administrator role")
	return role, nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	other, err := s.repo.FindByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check role name: %w", err)
	}
	if other.ID == self {
		return nil
	}
	return fmt.Errorf("%w: role %q already exists", domain.ErrConflict, name)
}

func (s *RoleService) invalidate(ctx context.Context, names ...string) {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, permissionsCacheKey(n))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate role permissions", slog.String("error", err.Error()))
	}
}

func permissionsCacheKey(roleName string) string {
	return rolePermissionsCachePrefix + strings.ToLower(roleName)
}
