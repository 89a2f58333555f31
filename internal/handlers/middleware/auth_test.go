package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

func authConfig() middleware.AuthConfig {
	return middleware.AuthConfig{Secret: []byte(helpers.TestJWTSecret), Issuer: "erp-admin"}
}

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuth(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRole   string
	}{
		{
			name:       "valid_token",
			header:     "Bearer " + helpers.NewTestToken(t, "user-1", "Sales"),
			wantStatus: http.StatusOK,
			wantRole:   "Sales",
		},
		{
			name:       "missing_header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong_scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired_token",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"sub": "user-1", "role": "Sales", "iss": "erp-admin",
				"exp": now.Add(-time.Minute).Unix(),
			}, helpers.TestJWTSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong_secret",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"sub": "user-1", "role": "Sales", "iss": "erp-admin",
				"exp": now.Add(time.Hour).Unix(),
			}, "another-secret-that-is-long-enough-too"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong_issuer",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"sub": "user-1", "role": "Sales", "iss": "someone-else",
				"exp": now.Add(time.Hour).Unix(),
			}, helpers.TestJWTSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing_role",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"sub": "user-1", "iss": "erp-admin",
				"exp": now.Add(time.Hour).Unix(),
			}, helpers.TestJWTSecret),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRole string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := middleware.PrincipalFrom(r.Context())
				assert.True(t, ok)
				gotRole = p.Role
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			middleware.Auth(authConfig(), helpers.TestLogger())(handler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantRole, gotRole)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuth_WebsocketQueryToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := middleware.Auth(authConfig(), helpers.TestLogger())(handler)

	token := helpers.NewTestToken(t, "user-1", "Administrator")

	req := httptest.NewRequest("GET", "/api/v1/settings/backup/events?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Plain requests never read the query parameter.
	req = httptest.NewRequest("GET", "/api/v1/invoices?access_token="+token, nil)
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := middleware.PrincipalFrom(r.Context())
		assert.Equal(t, domain.AdministratorRole, p.Role)
		w.WriteHeader(http.StatusOK)
	})
	cfg := authConfig()
	cfg.Disabled = true

	w := httptest.NewRecorder()
	middleware.Auth(cfg, helpers.TestLogger())(handler).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		level      domain.AccessLevel
		err        error
		wantStatus int
	}{
		{"full_access_delete", http.MethodDelete, domain.AccessFull, nil, http.StatusOK},
		{"view_only_get", http.MethodGet, domain.AccessView, nil, http.StatusOK},
		{"view_only_post", http.MethodPost, domain.AccessView, nil, http.StatusForbidden},
		{"limited_put", http.MethodPut, domain.AccessLimited, nil, http.StatusOK},
		{"limited_delete", http.MethodDelete, domain.AccessLimited, nil, http.StatusForbidden},
		{"no_access", http.MethodGet, domain.AccessNone, nil, http.StatusForbidden},
		{"unknown_role", http.MethodGet, domain.AccessNone, domain.ErrNotFound, http.StatusForbidden},
		{"lookup_failure", http.MethodGet, domain.AccessNone, errors.New("redis down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			roles := mocks.NewMockRoleService(ctrl)
			roles.EXPECT().AccessFor(gomock.Any(), "Sales", domain.ModuleInvoices).Return(tt.level, tt.err)

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			wrapped := middleware.RequirePermission(roles, domain.ModuleInvoices, helpers.TestLogger())(handler)

			req := httptest.NewRequest(tt.method, "/api/v1/invoices", nil)
			req = req.WithContext(middleware.WithPrincipal(context.Background(), middleware.Principal{Subject: "u", Role: "Sales"}))
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequirePermission_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	roles := mocks.NewMockRoleService(ctrl)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	w := httptest.NewRecorder()
	middleware.RequirePermission(roles, domain.ModuleLeads, helpers.TestLogger())(handler).
		ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignToken_RoundTrip(t *testing.T) {
	token, err := middleware.SignToken([]byte(helpers.TestJWTSecret), "erp-admin", "cli-user", "Sales", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "cli-user", p.Subject)
		assert.Equal(t, "Sales", p.Role)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	middleware.Auth(authConfig(), helpers.TestLogger())(handler).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = middleware.SignToken(nil, "erp-admin", "x", "Sales", time.Minute)
	assert.Error(t, err)
}
