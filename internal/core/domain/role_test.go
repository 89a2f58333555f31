package domain_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

func TestRole_Validate(t *testing.T) {
	t.Run("fills_missing_modules_with_no_access", func(t *testing.T) {
		role := &domain.Role{
			Name:        "Sales",
			Color:       "#22c55e",
			Permissions: map[string]domain.AccessLevel{domain.ModuleLeads: domain.AccessFull},
		}
		require.NoError(t, role.Validate())
		assert.Len(t, role.Permissions, len(domain.Modules))
		assert.Equal(t, domain.AccessFull, role.AccessFor(domain.ModuleLeads))
		assert.Equal(t, domain.AccessNone, role.AccessFor(domain.ModuleRoles))
	})

	t.Run("rejects_unknown_access_level", func(t *testing.T) {
		role := &domain.Role{
			Name:        "Sales",
			Permissions: map[string]domain.AccessLevel{domain.ModuleLeads: "Root"},
		}
		err := role.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid access level")
	})

	t.Run("rejects_unknown_module", func(t *testing.T) {
		role := &domain.Role{
			Name:        "Sales",
			Permissions: map[string]domain.AccessLevel{"payroll": domain.AccessFull},
		}
		err := role.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown module")
	})

	t.Run("rejects_bad_color", func(t *testing.T) {
		role := &domain.Role{Name: "Sales", Color: "green"}
		require.Error(t, role.Validate())
	})

	t.Run("requires_name", func(t *testing.T) {
		role := &domain.Role{}
		require.Error(t, role.Validate())
	})
}

func TestAccessLevel_Allows(t *testing.T) {
	tests := []struct {
		level  domain.AccessLevel
		method string
		want   bool
	}{
		{domain.AccessFull, http.MethodDelete, true},
		{domain.AccessLimited, http.MethodPost, true},
		{domain.AccessLimited, http.MethodDelete, false},
		{domain.AccessView, http.MethodGet, true},
		{domain.AccessView, http.MethodPut, false},
		{domain.AccessNone, http.MethodGet, false},
		{"", http.MethodGet, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level)+"_"+tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.Allows(tt.method))
		})
	}
}

func TestRole_AccessFor_NilRole(t *testing.T) {
	var role *domain.Role
	assert.Equal(t, domain.AccessNone, role.AccessFor(domain.ModuleInvoices))
}

func TestNewAdministratorRole(t *testing.T) {
	role := domain.NewAdministratorRole()
	require.NoError(t, role.Validate())
	for _, m := range domain.Modules {
		assert.Equal(t, domain.AccessFull, role.AccessFor(m))
	}
	assert.True(t, role.IsSystem)
}
