// internal/handlers/router.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
)

// APIPrefix is the base path of every resource route
const APIPrefix = "/api/v1"

// Routes bundles the handlers served by the API. Health and Events may be nil.
type Routes struct {
	Invoices  *InvoiceHandler
	Leads     *LeadHandler
	Roles     *RoleHandler
	Settings  *SettingsHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler
	Events    *EventHub
	Access    middleware.AccessResolver
}

// RouterConfig holds the middleware settings
type RouterConfig struct {
	Auth              middleware.AuthConfig
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	MaxBodyBytes      int64
}

// NewRouter registers every route on a ServeMux and wraps it in the
// middleware chain.
func NewRouter(routes Routes, cfg RouterConfig, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(cfg.Auth, logger)
	guard := func(module string, h http.HandlerFunc) http.Handler {
		return auth(middleware.RequirePermission(routes.Access, module, logger)(h))
	}
	handle := func(pattern, module string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+APIPrefix+path, guard(module, h))
	}

	if routes.Health != nil {
		mux.HandleFunc("GET /health", routes.Health.Health)
		mux.HandleFunc("GET /ready", routes.Health.Readiness)
		mux.HandleFunc("GET "+APIPrefix+"/health", routes.Health.Health)
	}

	handle("GET /dashboard", domain.ModuleDashboard, routes.Dashboard.GetDashboard)

	inv := routes.Invoices
	handle("GET /invoices", domain.ModuleInvoices, inv.List)
	handle("POST /invoices", domain.ModuleInvoices, inv.Create)
	handle("GET /invoices/{id}", domain.ModuleInvoices, inv.Get)
	handle("PUT /invoices/{id}", domain.ModuleInvoices, inv.Update)
	handle("DELETE /invoices/{id}", domain.ModuleInvoices, inv.Delete)
	handle("PATCH /invoices/{id}/status", domain.ModuleInvoices, inv.UpdateStatus)
	handle("GET /invoices/{id}/pdf", domain.ModuleInvoices, inv.PDF)
	handle("POST /invoices/{id}/send", domain.ModuleInvoices, inv.Send)

	leads := routes.Leads
	handle("GET /leads", domain.ModuleLeads, leads.List)
	handle("POST /leads", domain.ModuleLeads, leads.Create)
	handle("GET /leads/stats", domain.ModuleLeads, leads.Stats)
	handle("GET /leads/employees", domain.ModuleLeads, leads.Employees)
	handle("GET /leads/export", domain.ModuleLeads, leads.Export)
	handle("POST /leads/import", domain.ModuleLeads, leads.Import)
	handle("GET /leads/{id}", domain.ModuleLeads, leads.Get)
	handle("PUT /leads/{id}", domain.ModuleLeads, leads.Update)
	handle("DELETE /leads/{id}", domain.ModuleLeads, leads.Delete)

	roles := routes.Roles
	handle("GET /roles", domain.ModuleRoles, roles.List)
	handle("POST /roles", domain.ModuleRoles, roles.Create)
	handle("GET /roles/modules", domain.ModuleRoles, roles.Modules)
	handle("GET /roles/{id}", domain.ModuleRoles, roles.Get)
	handle("PUT /roles/{id}", domain.ModuleRoles, roles.Update)
	handle("DELETE /roles/{id}", domain.ModuleRoles, roles.Delete)

	settings := routes.Settings
	handle("GET /settings/branding", domain.ModuleSettings, settings.GetBranding)
	handle("PUT /settings/branding", domain.ModuleSettings, settings.UpdateBranding)
	handle("GET /settings/notifications", domain.ModuleSettings, settings.GetNotifications)
	handle("PUT /settings/notifications", domain.ModuleSettings, settings.UpdateNotifications)
	handle("POST /settings/backup", domain.ModuleSettings, settings.StartBackup)
	handle("GET /settings/backup/history", domain.ModuleSettings, settings.BackupHistory)
	handle("GET /settings/backup/{id}", domain.ModuleSettings, settings.GetBackup)
	handle("GET /settings/backup/{id}/download", domain.ModuleSettings, settings.DownloadBackup)
	if routes.Events != nil {
		handle("GET /settings/backup/events", domain.ModuleSettings, routes.Events.ServeWS)
	}

	// Applied innermost first.
	var handler http.Handler = mux
	handler = middleware.Compression(handler)
	if cfg.MaxBodyBytes > 0 {
		handler = middleware.MaxBody(cfg.MaxBodyBytes)(handler)
	}
	if cfg.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}
	if len(cfg.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	}
	handler = middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitDuration)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logger(logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

