// internal/core/domain/role.go
package domain

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccessLevel is a coarse permission grade for one module
type AccessLevel string

// Access level constants
const (
	AccessFull    AccessLevel = "Full Access"
	AccessView    AccessLevel = "View Only"
	AccessLimited AccessLevel = "Limited Access"
	AccessNone    AccessLevel = "No Access"
)

// IsValid reports whether a is a known access level
func (a AccessLevel) IsValid() bool {
	switch a {
	case AccessFull, AccessView, AccessLimited, AccessNone:
		return true
	}
	return false
}

// Allows reports whether the access level permits the HTTP method.
// Limited access may read, create and update but never delete.
func (a AccessLevel) Allows(method string) bool {
	switch a {
	case AccessFull:
		return true
	case AccessLimited:
		return method != http.MethodDelete
	case AccessView:
		return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
	default:
		return false
	}
}

// Module names permissions are granted on
const (
	ModuleDashboard = "dashboard"
	ModuleInvoices  = "invoices"
	ModuleLeads     = "leads"
	ModuleEmployees = "employees"
	ModuleRoles     = "roles"
	ModuleSettings  = "settings"
)

// Modules lists every module a role can be granted access to
var Modules = []string{
	ModuleDashboard,
	ModuleInvoices,
	ModuleLeads,
	ModuleEmployees,
	ModuleRoles,
	ModuleSettings,
}

// AdministratorRole is the built-in role that cannot be deleted
const AdministratorRole = "Administrator"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Role groups per-module access levels
type Role struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Color       string                 `json:"color,omitempty"`
	Permissions map[string]AccessLevel `json:"permissions"`
	IsSystem    bool                   `json:"is_system"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Validate performs domain validation on the role and fills missing modules
func (r *Role) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ValidationError("name is required")
	}
	if r.Color != "" && !hexColor.MatchString(r.Color) {
		return ValidationError("color %q must be a hex color", r.Color)
	}
	if r.Permissions == nil {
		r.Permissions = make(map[string]AccessLevel, len(Modules))
	}
	for module, level := range r.Permissions {
		if !isKnownModule(module) {
			return ValidationError("unknown module %q", module)
		}
		if !level.IsValid() {
			return ValidationError("invalid access level %q for module %q", level, module)
		}
	}
	for _, module := range Modules {
		if _, ok := r.Permissions[module]; !ok {
			r.Permissions[module] = AccessNone
		}
	}
	return nil
}

// AccessFor returns the access level granted on module
func (r *Role) AccessFor(module string) AccessLevel {
	if r == nil {
		return AccessNone
	}
	if level, ok := r.Permissions[module]; ok {
		return level
	}
	return AccessNone
}

// PrepareForStorage prepares the role for database storage
func (r *Role) PrepareForStorage() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// NewAdministratorRole returns the built-in role with full access everywhere
func NewAdministratorRole() *Role {
	perms := make(map[string]AccessLevel, len(Modules))
	for _, m := range Modules {
		perms[m] = AccessFull
	}
	return &Role{
		Name:        AdministratorRole,
		Description: "Full access to every module",
		Color:       "#1f2937",
		Permissions: perms,
		IsSystem:    true,
	}
}

func isKnownModule(module string) bool {
	for _, m := range Modules {
		if m == module {
			return true
		}
	}
	return false
}
