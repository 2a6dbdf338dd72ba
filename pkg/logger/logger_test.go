package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "a@*.com", SanitizedEmail("a@b.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.True(t, SanitizeQueryString("otpCode=123456"))
	assert.True(t, SanitizeQueryString("Email=a@b.com"))
	assert.False(t, SanitizeQueryString("limit=10&offset=20"))
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/auth/reset-password/[REDACTED]",
		SanitizePath("/api/v1/auth/reset-password/6f1c0a9e"))
	assert.Equal(t, "/api/v1/auth/reset-password/", SanitizePath("/api/v1/auth/reset-password/"))
	assert.Equal(t, "/api/v1/auth/login", SanitizePath("/api/v1/auth/login"))
}

func TestAuditLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	al.Log(context.Background(), AuditEvent{
		EventType:     EventLoginFailed,
		FailureReason: "invalid_credentials",
		IPAddress:     "203.0.113.10",
	})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "login_failed", rec["event_type"])
	assert.Equal(t, "invalid_credentials", rec["failure_reason"])
	assert.Equal(t, "2026-01-01T00:00:00Z", rec["timestamp"])
	assert.NotContains(t, rec, "user_id")

	buf.Reset()
	al.Log(context.Background(), AuditEvent{
		EventType: EventLoginSuccess,
		UserID:    "user-1",
		Success:   true,
		Metadata:  map[string]string{"role": "admin"},
	})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "user-1", rec["user_id"])
	assert.Equal(t, "admin", rec["meta_role"])
}

func TestAuditLogger_NilIsNoop(t *testing.T) {
	var al *AuditLogger
	assert.NotPanics(t, func() {
		al.Log(context.Background(), AuditEvent{EventType: EventSignup})
	})
}
