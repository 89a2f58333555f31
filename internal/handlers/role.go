// internal/handlers/role.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// RoleHandler handles role HTTP requests
type RoleHandler struct {
	responder
	service ports.RoleService
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(service ports.RoleService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		responder: responder{logger: logger.With(slog.String("handler", "role"))},
		service:   service,
	}
}

// RoleRequest is the body of role create and update requests
type RoleRequest struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Color       string                        `json:"color"`
	Permissions map[string]domain.AccessLevel `json:"permissions"`
}

func (req *RoleRequest) toDomain() *domain.Role {
	return &domain.Role{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Permissions: req.Permissions,
	}
}

// List handles GET /api/v1/roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "failed to list roles")
		return
	}
	if roles == nil {
		roles = []*domain.Role{}
	}
	h.respondJSON(w, http.StatusOK, roles)
}

// Modules handles GET /api/v1/roles/modules
func (h *RoleHandler) Modules(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"modules": h.service.Modules(),
		"access_levels": []domain.AccessLevel{
			domain.AccessFull, domain.AccessLimited, domain.AccessView, domain.AccessNone,
		},
	})
}

// Get handles GET /api/v1/roles/{id}
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to get role")
		return
	}
	h.respondJSON(w, http.StatusOK, role)
}

// Create handles POST /api/v1/roles
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	role := req.toDomain()
	if err := h.service.Create(r.Context(), role); err != nil {
		h.respondServiceError(w, r, err, "failed to create role")
		return
	}
	h.logger.InfoContext(r.Context(), "role created",
		slog.String("role_id", role.ID.String()),
		slog.String("name", role.Name))
	h.respondJSON(w, http.StatusCreated, role)
}

// Update handles PUT /api/v1/roles/{id}
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	role := req.toDomain()
	if err := h.service.Update(r.Context(), id, role); err != nil {
		h.respondServiceError(w, r, err, "failed to update role")
		return
	}
	h.respondJSON(w, http.StatusOK, role)
}

// Delete handles DELETE /api/v1/roles/{id}
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "failed to delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
