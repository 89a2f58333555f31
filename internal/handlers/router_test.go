// internal/handlers/router_test.go
package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/handlers"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

type routerMocks struct {
	invoices *mocks.MockInvoiceService
	leads    *mocks.MockLeadService
	roles    *mocks.MockRoleService
}

func newTestRouter(t *testing.T) (http.Handler, routerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := routerMocks{
		invoices: mocks.NewMockInvoiceService(ctrl),
		leads:    mocks.NewMockLeadService(ctrl),
		roles:    mocks.NewMockRoleService(ctrl),
	}
	settings := mocks.NewMockSettingsService(ctrl)
	backups := mocks.NewMockBackupService(ctrl)
	log := helpers.TestLogger()

	router := handlers.NewRouter(handlers.Routes{
		Invoices:  handlers.NewInvoiceHandler(m.invoices, log),
		Leads:     handlers.NewLeadHandler(m.leads, 1<<20, log),
		Roles:     handlers.NewRoleHandler(m.roles, log),
		Settings:  handlers.NewSettingsHandler(settings, backups, log),
		Dashboard: handlers.NewDashboardHandler(m.invoices, m.leads, backups, mocks.NewMockCacheRepository(ctrl), log),
		Access:    m.roles,
	}, handlers.RouterConfig{
		Auth:          middleware.AuthConfig{Secret: []byte(helpers.TestJWTSecret), Issuer: "erp-admin"},
		SecureHeaders: true,
		MaxBodyBytes:  1 << 20,
	}, log)
	return router, m
}

func TestRouter_AuthAndPermissions(t *testing.T) {
	router, m := newTestRouter(t)
	token := helpers.NewTestToken(t, "user-1", "Sales")

	m.roles.EXPECT().AccessFor(gomock.Any(), "Sales", domain.ModuleInvoices).Return(domain.AccessView, nil).AnyTimes()
	m.roles.EXPECT().AccessFor(gomock.Any(), "Sales", domain.ModuleRoles).Return(domain.AccessNone, nil).AnyTimes()
	m.invoices.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.NewPage([]*domain.Invoice{}, domain.ListParams{Page: 1, Limit: 10}, 0), nil)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
	}{
		{"no_token", "GET", "/api/v1/invoices", "", http.StatusUnauthorized},
		{"view_only_can_list", "GET", "/api/v1/invoices", token, http.StatusOK},
		{"view_only_cannot_delete", "DELETE", "/api/v1/invoices/" + uuid.NewString(), token, http.StatusForbidden},
		{"no_access_module", "GET", "/api/v1/roles", token, http.StatusForbidden},
		{"unknown_route", "GET", "/api/v1/nothing", token, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_StaticSegmentsWinOverIDs(t *testing.T) {
	router, m := newTestRouter(t)
	token := helpers.NewTestToken(t, "user-1", "Sales")

	m.roles.EXPECT().AccessFor(gomock.Any(), "Sales", domain.ModuleLeads).Return(domain.AccessFull, nil)
	m.leads.EXPECT().Stats(gomock.Any()).Return(domain.NewLeadStats(), nil)

	req := httptest.NewRequest("GET", "/api/v1/leads/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
