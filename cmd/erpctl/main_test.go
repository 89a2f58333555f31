package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.RunContext(context.Background(), append([]string{"erpctl"}, args...))
	return out.String(), err
}

func TestInvoicesList_FollowsAllPages(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/invoices", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("page"))
		mu.Unlock()

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		inv := &domain.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: "INV-" + strconv.Itoa(page),
			ClientName:    "Acme",
			Status:        domain.InvoiceStatusUnpaid,
			Currency:      "USD",
			Amount:        decimal.NewFromInt(10),
		}
		json.NewEncoder(w).Encode(domain.NewPage([]*domain.Invoice{inv},
			domain.ListParams{Page: page, Limit: 1}, 3))
	}))
	defer srv.Close()

	out, err := runApp(t, "--url", srv.URL+"/api/v1", "--token", "secret",
		"invoices", "list", "--limit", "1", "--all")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, pages)
	assert.Contains(t, out, "INV-1")
	assert.Contains(t, out, "INV-3")
	assert.Contains(t, out, "page 3 of 3, 3 shown, 3 total")
}

func TestLeadsList_SendsFiltersAndSort(t *testing.T) {
	assignee := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "acme", q.Get("search"))
		assert.Equal(t, "High", q.Get("priority"))
		assert.Equal(t, assignee.String(), q.Get("assignedTo"))
		assert.Equal(t, "company", q.Get("sortBy"))
		assert.Equal(t, "desc", q.Get("sortOrder"))
		json.NewEncoder(w).Encode(domain.NewPage([]*domain.Lead{}, domain.ListParams{Page: 1, Limit: 10}, 0))
	}))
	defer srv.Close()

	out, err := runApp(t, "--url", srv.URL, "--token", "t", "-o", "json",
		"leads", "list", "-q", "acme", "--priority", "High", "--assigned-to", assignee.String(),
		"--sort", "company", "--desc")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestInvoicesGet_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := runApp(t, "--url", srv.URL, "--token", "bad", "invoices", "get", uuid.NewString())
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Message)
}

func TestInvoicesGet_RejectsBadID(t *testing.T) {
	_, err := runApp(t, "--url", "http://localhost:1", "--token", "t", "invoices", "get", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
	assert.Equal(t, 2, exitCode(err))
}

func TestBackupDownload_SavesArchive(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/settings/backup/"+id.String()+"/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="backup.zip"`)
		w.Header().Set("X-Checksum-SHA256", "abc123")
		w.Write([]byte("PK"))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		args func(dir string) []string
	}{
		{"dir_flag_before_id", func(dir string) []string { return []string{"--dir", dir, id.String()} }},
		{"dir_flag_after_id", func(dir string) []string { return []string{id.String(), "--dir", dir} }},
		{"dir_flag_with_equals_after_id", func(dir string) []string { return []string{id.String(), "--dir=" + dir} }},
		{"dir_positional", func(dir string) []string { return []string{id.String(), dir} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--url", srv.URL, "--token", "t", "settings", "backup", "download"}, tt.args(dir)...)
			out, err := runApp(t, args...)
			require.NoError(t, err)

			data, err := os.ReadFile(filepath.Join(dir, "backup.zip"))
			require.NoError(t, err)
			assert.Equal(t, "PK", string(data))
			assert.Contains(t, out, "sha256 abc123")
		})
	}
}

func TestTokenCommand_SignsVerifiableToken(t *testing.T) {
	out, err := runApp(t, "--jwt-secret", "dev-secret", "--role", "Sales", "token")
	require.NoError(t, err)

	token := string(bytes.TrimSpace([]byte(out)))
	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte("dev-secret"), nil
	}, jwt.WithIssuer("erp-admin"))
	require.NoError(t, err)
	assert.Equal(t, "Sales", claims.Role)
	assert.Equal(t, "erpctl", claims.Subject)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := runApp(t, "token")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, exitCode(&client.APIError{Op: "fetch invoices", StatusCode: http.StatusUnauthorized}))
	assert.Equal(t, 1, exitCode(&client.APIError{Op: "fetch invoices", StatusCode: http.StatusConflict}))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
