package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNewLogger_JSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LogConfig{Level: "info", Format: "json", Writer: &buf, ServiceName: "erp-admin"})

	backupID := uuid.New()
	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyBackupID, backupID)
	ctx = context.WithValue(ctx, ContextKeyDuration, 1500*time.Microsecond)

	l.InfoContext(ctx, "backup started", slog.Int("files", 6))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "backup started", entry["msg"])
	assert.Equal(t, "erp-admin", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, backupID.String(), entry["backup_id"])
	assert.Equal(t, 1.5, entry["duration_ms"])
	assert.Equal(t, float64(6), entry["files"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LogConfig{Level: "warn", Format: "json", Writer: &buf})

	l.Info("ignored")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSanitization(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LogConfig{Level: "debug", Format: "json", Writer: &buf})

	l.With(slog.String("jwt_secret", "abc")).Info("sending invoice to billing@acme.test",
		slog.String("smtp_password", "hunter2"),
		slog.String("note", "token=abcdef123"),
	)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "sending invoice to b***@acme.test", entry["msg"])
	assert.Equal(t, redacted, entry["smtp_password"])
	assert.Equal(t, redacted, entry["jwt_secret"])
	assert.Equal(t, "token="+redacted, entry["note"])
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"password: hunter2", "password: " + redacted},
		{"card 4111 1111 1111 1111 declined", "card " + redacted + " declined"},
		{"no secrets here", "no secrets here"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeString(tt.in))
		})
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LogConfig{Level: "debug", Format: "text", Writer: &buf})

	l.With(slog.String("component", "worker")).WithGroup("task").Debug("processed", slog.String("type", "backup:create"))

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "processed")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "task.type")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithLogger(context.Background(), base)
	ctx = context.WithValue(ctx, ContextKeyTaskID, "task-9")

	FromContext(ctx).Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "task-9", entry["task_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestErr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}
