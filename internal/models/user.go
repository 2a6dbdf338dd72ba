package models

import (
	"regexp"
	"strings"
	"time"
)

// emailPattern is the accepted account email format
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether email matches the account email format.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Role is the flat access level assigned to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleTest  Role = "test"
)

// User is an account record. Plaintext passwords never live on it longer
// than the next save.
type User struct {
	ID                  string
	Name                string     `validate:"max=50"`
	Email               string     `validate:"required,account_email"`
	PasswordHash        string     `validate:"required"`
	Role                Role       `validate:"oneof=user admin test"`
	IsVerified          bool
	IsActive            bool
	LastLogin           time.Time
	PasswordChangedAt   *time.Time // Set on every password change after creation
	OTPHash             string
	OTPExpiresAt        *time.Time
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	pendingPassword *string
}

// NewUser returns an active, unverified user with the default role.
func NewUser(name, email, password string) *User {
	u := &User{
		Name:     name,
		Email:    email,
		Role:     RoleUser,
		IsActive: true,
	}
	u.SetPassword(password)
	return u
}

// SetPassword stages a plaintext password. The store hashes it on the next save.
func (u *User) SetPassword(plain string) {
	u.pendingPassword = &plain
}

// PendingPassword returns the staged plaintext password, if any.
func (u *User) PendingPassword() (string, bool) {
	if u.pendingPassword == nil {
		return "", false
	}
	return *u.pendingPassword, true
}

// ClearPendingPassword drops the staged plaintext once it has been hashed.
func (u *User) ClearPendingPassword() {
	u.pendingPassword = nil
}

// IsNew reports whether the user has never been persisted.
func (u *User) IsNew() bool {
	return u.ID == ""
}

// ChangedPasswordAfter reports whether the password was changed after the given instant.
func (u *User) ChangedPasswordAfter(t time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return t.Before(*u.PasswordChangedAt)
}

// ClearOTP removes the email verification code.
func (u *User) ClearOTP() {
	u.OTPHash = ""
	u.OTPExpiresAt = nil
}

// ClearResetToken removes the password reset secret.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = ""
	u.ResetTokenExpiresAt = nil
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
