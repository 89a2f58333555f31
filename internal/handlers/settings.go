// internal/handlers/settings.go
package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
)

const defaultHistoryLimit = 20

// SettingsHandler handles branding, notification and backup requests
type SettingsHandler struct {
	responder
	settings ports.SettingsService
	backups  ports.BackupService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings ports.SettingsService, backups ports.BackupService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		responder: responder{logger: logger.With(slog.String("handler", "settings"))},
		settings:  settings,
		backups:   backups,
	}
}

// GetBranding handles GET /api/v1/settings/branding
func (h *SettingsHandler) GetBranding(w http.ResponseWriter, r *http.Request) {
	b, err := h.settings.GetBranding(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load branding")
		return
	}
	h.respondJSON(w, http.StatusOK, b)
}

// UpdateBranding handles PUT /api/v1/settings/branding
func (h *SettingsHandler) UpdateBranding(w http.ResponseWriter, r *http.Request) {
	var b domain.Branding
	if !h.decodeJSON(w, r, &b) {
		return
	}
	if err := h.settings.UpdateBranding(r.Context(), &b); err != nil {
		h.respondServiceError(w, r, err, "failed to update branding")
		return
	}
	h.respondJSON(w, http.StatusOK, &b)
}

// GetNotifications handles GET /api/v1/settings/notifications
func (h *SettingsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.settings.GetNotifications(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load notification settings")
		return
	}
	h.respondJSON(w, http.StatusOK, n)
}

// UpdateNotifications handles PUT /api/v1/settings/notifications
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var n domain.NotificationSettings
	if !h.decodeJSON(w, r, &n) {
		return
	}
	if err := h.settings.UpdateNotifications(r.Context(), &n); err != nil {
		h.respondServiceError(w, r, err, "failed to update notification settings")
		return
	}
	h.respondJSON(w, http.StatusOK, &n)
}

// StartBackup handles POST /api/v1/settings/backup
func (h *SettingsHandler) StartBackup(w http.ResponseWriter, r *http.Request) {
	requestedBy := ""
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		requestedBy = p.Subject
	}

	rec, err := h.backups.Request(r.Context(), requestedBy)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to start backup")
		return
	}
	h.respondJSON(w, http.StatusAccepted, rec)
}

// BackupHistory handles GET /api/v1/settings/backup/history
func (h *SettingsHandler) BackupHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxLimit {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(domain.MaxLimit))
			return
		}
		limit = n
	}

	records, err := h.backups.History(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load backup history")
		return
	}
	if records == nil {
		records = []*domain.BackupRecord{}
	}
	h.respondJSON(w, http.StatusOK, records)
}

// GetBackup handles GET /api/v1/settings/backup/{id}
func (h *SettingsHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.backups.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to get backup")
		return
	}
	h.respondJSON(w, http.StatusOK, rec)
}

// DownloadBackup handles GET /api/v1/settings/backup/{id}/download
func (h *SettingsHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	body, rec, err := h.backups.Open(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to open backup")
		return
	}
	defer body.Close()

	filename := "backup_" + rec.CreatedAt.UTC().Format("20060102_150405") + ".zip"
	attachment(w, "application/zip", filename, int(rec.SizeBytes))
	if rec.Checksum != "" {
		w.Header().Set("X-Checksum-SHA256", rec.Checksum)
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to stream backup",
			slog.String("backup_id", id.String()),
			slog.String("error", err.Error()))
	}
}
