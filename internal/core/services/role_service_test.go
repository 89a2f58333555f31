// internal/core/services/role_service_test.go
package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/services"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

func newRoleService(t *testing.T) (*services.RoleService, *mocks.MockRoleRepository, *mocks.MockCacheRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoleRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	return services.NewRoleService(repo, cache, helpers.TestLogger()), repo, cache
}

func TestRoleService_Create(t *testing.T) {
	t.Run("creates_role_with_complete_permissions", func(t *testing.T) {
		svc, repo, cache := newRoleService(t)
		role := helpers.CreateTestRole()
		cache.EXPECT().Delete(gomock.Any(), "erp:roles:permissions:sales").Return(nil)

		repo.EXPECT().FindByName(gomock.Any(), role.Name).Return(nil, domain.ErrNotFound)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r *domain.Role) error {
				assert.Len(t, r.Permissions, len(domain.Modules))
				assert.False(t, r.IsSystem)
				return nil
			})

		require.NoError(t, svc.Create(context.Background(), role))
	})

	t.Run("recreated_name_drops_cached_permissions", func(t *testing.T) {
		svc, repo, cache := newRoleService(t)
		role := helpers.CreateTestRole()

		repo.EXPECT().FindByName(gomock.Any(), role.Name).Return(nil, domain.ErrNotFound)
		gomock.InOrder(
			repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
			cache.EXPECT().Delete(gomock.Any(), "erp:roles:permissions:sales").Return(nil),
		)

		require.NoError(t, svc.Create(context.Background(), role))
	})

	t.Run("failed_save_keeps_cache", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		role := helpers.CreateTestRole()

		repo.EXPECT().FindByName(gomock.Any(), role.Name).Return(nil, domain.ErrNotFound)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(assert.AnError)

		assert.ErrorIs(t, svc.Create(context.Background(), role), assert.AnError)
	})

	t.Run("duplicate_name_conflicts", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		role := helpers.CreateTestRole()
		repo.EXPECT().FindByName(gomock.Any(), role.Name).Return(helpers.CreateTestRole(), nil)

		err := svc.Create(context.Background(), role)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestRoleService_SystemRolesAreProtected(t *testing.T) {
	admin := domain.NewAdministratorRole()
	admin.PrepareForStorage()

	t.Run("delete", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		repo.EXPECT().FindByID(gomock.Any(), admin.ID).Return(admin, nil)

		err := svc.Delete(context.Background(), admin.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("update", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		repo.EXPECT().FindByID(gomock.Any(), admin.ID).Return(admin, nil)

		err := svc.Update(context.Background(), admin.ID, helpers.CreateTestRole())
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestRoleService_Update_RenameInvalidatesBothNames(t *testing.T) {
	svc, repo, cache := newRoleService(t)
	existing := helpers.CreateTestRole()

	repo.EXPECT().FindByID(gomock.Any(), existing.ID).Return(existing, nil)
	repo.EXPECT().FindByName(gomock.Any(), "Support").Return(nil, domain.ErrNotFound)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	cache.EXPECT().Delete(gomock.Any(), "erp:roles:permissions:sales", "erp:roles:permissions:support").Return(nil)

	update := helpers.CreateTestRole(func(r *domain.Role) { r.Name = "Support" })
	require.NoError(t, svc.Update(context.Background(), existing.ID, update))
	assert.Equal(t, existing.ID, update.ID)
}

func TestRoleService_Delete(t *testing.T) {
	svc, repo, cache := newRoleService(t)
	role := helpers.CreateTestRole()

	repo.EXPECT().FindByID(gomock.Any(), role.ID).Return(role, nil)
	repo.EXPECT().Delete(gomock.Any(), role.ID).Return(nil)
	cache.EXPECT().Delete(gomock.Any(), "erp:roles:permissions:sales").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), role.ID))
}

func TestRoleService_AccessFor(t *testing.T) {
	tests := []struct {
		name     string
		role     *domain.Role
		findErr  error
		module   string
		expected domain.AccessLevel
	}{
		{
			name:     "granted_module",
			role:     helpers.CreateTestRole(),
			module:   domain.ModuleLeads,
			expected: domain.AccessFull,
		},
		{
			name:     "view_only_module",
			role:     helpers.CreateTestRole(),
			module:   domain.ModuleInvoices,
			expected: domain.AccessView,
		},
		{
			name:     "unknown_role_has_no_access",
			findErr:  domain.ErrNotFound,
			module:   domain.ModuleLeads,
			expected: domain.AccessNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, cache := newRoleService(t)
			cache.EXPECT().GetOrSet(gomock.Any(), "erp:roles:permissions:sales", gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(fillFromFetch)
			repo.EXPECT().FindByName(gomock.Any(), "Sales").Return(tt.role, tt.findErr)

			level, err := svc.AccessFor(context.Background(), "Sales", tt.module)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestRoleService_EnsureAdministrator(t *testing.T) {
	t.Run("creates_when_missing", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		repo.EXPECT().FindByName(gomock.Any(), domain.AdministratorRole).Return(nil, domain.ErrNotFound)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		role, err := svc.EnsureAdministrator(context.Background())
		require.NoError(t, err)
		assert.True(t, role.IsSystem)
		assert.True(t, role.AccessFor(domain.ModuleSettings).Allows(http.MethodDelete))
		assert.NotEqual(t, uuid.Nil, role.ID)
	})

	t.Run("returns_existing", func(t *testing.T) {
		svc, repo, _ := newRoleService(t)
		admin := domain.NewAdministratorRole()
		repo.EXPECT().FindByName(gomock.Any(), domain.AdministratorRole).Return(admin, nil)

		role, err := svc.EnsureAdministrator(context.Background())
		require.NoError(t, err)
		assert.Same(t, admin, role)
	})
}

func TestRoleService_Modules(t *testing.T) {
	svc, _, _ := newRoleService(t)
	modules := svc.Modules()
	modules[0] = "mutated"
	assert.Equal(t, domain.ModuleDashboard, svc.Modules()[0])
}
