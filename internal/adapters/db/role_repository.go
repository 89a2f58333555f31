// internal/adapters/db/role_repository.go
package db

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const roleSelect = `SELECT id, name, description, color, permissions, is_system, created_at, updated_at FROM roles`

type roleRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *Database, logger *slog.Logger) ports.RoleRepository {
	return &roleRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "role")),
	}
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	role := &domain.Role{}
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Color,
		&role.Permissions, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if role.Permissions == nil {
		role.Permissions = map[string]domain.AccessLevel{}
	}
	return role, nil
}

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles (id, name, description, color, permissions, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		role.ID, role.Name, role.Description, role.Color, role.Permissions,
		role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return mapError("create role", err)
	}
	r.logger.InfoContext(ctx, "role created", slog.String("role", role.Name))
	return nil
}

func (r *roleRepository) Update(ctx context.Context, role *domain.Role) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, color = $4, permissions = $5, updated_at = $6
		WHERE id = $1`,
		role.ID, role.Name, role.Description, role.Color, role.Permissions, role.UpdatedAt)
	if err != nil {
		return mapError("update role", err)
	}
	return expectOne(tag, "update role")
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_system`, id)
	if err != nil {
		return mapError("delete role", err)
	}
	return expectOne(tag, "delete role")
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, roleSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("find role", err)
	}
	return role, nil
}

// FindByName matches case-insensitively
func (r *roleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, roleSelect+` WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		return nil, mapError("find role by name", err)
	}
	return role, nil
}

// List returns system roles first, then by name
func (r *roleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.db.Query(ctx, roleSelect+` ORDER BY is_system DESC, name`)
	if err != nil {
		return nil, mapError("list roles", err)
	}
	return collect(rows, scanRole)
}
