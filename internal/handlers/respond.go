// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// responder carries the JSON helpers every handler shares
type responder struct {
	logger *slog.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h responder) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain sentinel errors to status codes. Anything
// unrecognised is logged and reported as a generic failure.
func (h responder) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.respondError(w, http.StatusBadRequest, userMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, userMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		h.respondError(w, http.StatusConflict, userMessage(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrForbidden):
		h.respondError(w, http.StatusForbidden, userMessage(err, domain.ErrForbidden))
	default:
		h.logger.ErrorContext(r.Context(), fallback, slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, fallback)
	}
}

// userMessage trims wrapping context so the response names the problem,
// e.g. "validation failed: company is required".
func userMessage(err error, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return msg
}

func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return h.decodeBody(w, r, dst, false)
}

// decodeOptionalJSON leaves dst untouched when the body is empty, whatever
// the declared content length.
func (h responder) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return h.decodeBody(w, r, dst, true)
}

func (h responder) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF) && optional:
			return true
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		default:
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		}
		return false
	}
	return true
}

func (h responder) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parseListParams reads page, limit, sortBy and sortOrder. Values are
// normalized by domain.ListParams so bad input falls back to defaults.
func parseListParams(r *http.Request) domain.ListParams {
	q := r.URL.Query()
	params := domain.ListParams{
		SortBy:    firstNonEmpty(q.Get("sortBy"), q.Get("sort_by")),
		SortOrder: domain.SortOrder(strings.ToLower(firstNonEmpty(q.Get("sortOrder"), q.Get("sort_order")))),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		params.Limit = v
	}
	params.Normalize()
	return params
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// attachment sets the headers of a file download
func attachment(w http.ResponseWriter, contentType, filename string, size int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(size))
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}
