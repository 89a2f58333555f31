package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// RoleInput is the body of role create and update calls
type RoleInput struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description,omitempty"`
	Color       string                        `json:"color,omitempty"`
	Permissions map[string]domain.AccessLevel `json:"permissions"`
}

// ModuleCatalog lists the modules a role can grant and the access levels
type ModuleCatalog struct {
	Modules      []string             `json:"modules"`
	AccessLevels []domain.AccessLevel `json:"access_levels"`
}

// Roles is the role gateway
type Roles struct {
	c *Client
}

// List fetches every role
func (g *Roles) List(ctx context.Context) ([]*domain.Role, error) {
	var out []*domain.Role
	if err := g.c.do(ctx, "fetch roles", http.MethodGet, "/roles", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one role
func (g *Roles) Get(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	var role domain.Role
	if err := g.c.do(ctx, "fetch role", http.MethodGet, "/roles/"+id.String(), nil, nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// Create stores a new role
func (g *Roles) Create(ctx context.Context, in RoleInput) (*domain.Role, error) {
	var role domain.Role
	if err := g.c.do(ctx, "create role", http.MethodPost, "/roles", nil, in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// Update replaces a role's name, description, color and permissions
func (g *Roles) Update(ctx context.Context, id uuid.UUID, in RoleInput) (*domain.Role, error) {
	var role domain.Role
	if err := g.c.do(ctx, "update role", http.MethodPut, "/roles/"+id.String(), nil, in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// Delete removes a role. System roles are refused with 403.
func (g *Roles) Delete(ctx context.Context, id uuid.UUID) error {
	return g.c.do(ctx, "delete role", http.MethodDelete, "/roles/"+id.String(), nil, nil, nil)
}

// Modules fetches the permission catalog
func (g *Roles) Modules(ctx context.Context) (*ModuleCatalog, error) {
	var out ModuleCatalog
	if err := g.c.do(ctx, "fetch modules", http.MethodGet, "/roles/modules", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
