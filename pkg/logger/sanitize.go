package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD readable
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// EmailAttr returns a masked email attribute.
func EmailAttr(email string) slog.Attr {
	return slog.String("email", SanitizedEmail(email))
}

var sensitiveParams = []string{
	"password", "token", "secret", "otp", "code", "email", "auth",
}

// SanitizeQueryString reports whether the query string mentions a sensitive
// parameter and must be redacted as a whole.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}

// SanitizePath redacts the secret segment of password reset URLs, which
// carry the plaintext reset token as the path segment after "reset-password".
func SanitizePath(path string) string {
	segments := strings.Split(path, "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "reset-password" && segments[i+1] != "" {
			segments[i+1] = "[REDACTED]"
		}
	}
	return strings.Join(segments, "/")
}
