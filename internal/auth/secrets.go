package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
)

const (
	DefaultOTPExpiry        = 24 * time.Hour
	DefaultResetTokenExpiry = 10 * time.Minute

	otpMin           = 100000
	otpSpan          = 900000 // codes fall in [100000, 999999]
	resetTokenLength = 32
)

// SecretIssuer generates time-boxed, single-use secrets bound to a user.
// Only the SHA-256 of a secret is kept on the user record.
type SecretIssuer struct {
	otpExpiry   time.Duration
	resetExpiry time.Duration
	random      io.Reader
	now         func() time.Time
}

// NewSecretIssuer creates a SecretIssuer. Zero durations select the defaults.
func NewSecretIssuer(otpExpiry, resetExpiry time.Duration) *SecretIssuer {
	if otpExpiry <= 0 {
		otpExpiry = DefaultOTPExpiry
	}
	if resetExpiry <= 0 {
		resetExpiry = DefaultResetTokenExpiry
	}
	return &SecretIssuer{
		otpExpiry:   otpExpiry,
		resetExpiry: resetExpiry,
		random:      rand.Reader,
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (s *SecretIssuer) SetClock(now func() time.Time) {
	s.now = now
}

// HashSecret returns the hex SHA-256 digest stored in place of a secret.
func HashSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// IssueOTP stores a fresh 6-digit email verification code on user and returns it.
func (s *SecretIssuer) IssueOTP(user *models.User) (string, error) {
	n, err := rand.Int(s.random, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	code := strconv.FormatInt(n.Int64()+otpMin, 10)

	expiresAt := s.now().Add(s.otpExpiry)
	user.OTPHash = HashSecret(code)
	user.OTPExpiresAt = &expiresAt

	return code, nil
}

// IssueResetToken stores a fresh password reset secret on user and returns it.
func (s *SecretIssuer) IssueResetToken(user *models.User) (string, error) {
	buf := make([]byte, resetTokenLength)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)

	expiresAt := s.now().Add(s.resetExpiry)
	user.ResetTokenHash = HashSecret(token)
	user.ResetTokenExpiresAt = &expiresAt

	return token, nil
}

// VerifyOTP checks code against the stored hash and expiry and consumes it on success.
func (s *SecretIssuer) VerifyOTP(user *models.User, code string) bool {
	if !s.matches(user.OTPHash, user.OTPExpiresAt, code) {
		return false
	}
	user.ClearOTP()
	return true
}

// VerifyResetToken checks token against the stored hash and expiry and consumes it on success.
func (s *SecretIssuer) VerifyResetToken(user *models.User, token string) bool {
	if !s.matches(user.ResetTokenHash, user.ResetTokenExpiresAt, token) {
		return false
	}
	user.ClearResetToken()
	return true
}

func (s *SecretIssuer) matches(storedHash string, expiresAt *time.Time, plain string) bool {
	if storedHash == "" || expiresAt == nil || plain == "" {
		return false
	}
	if !expiresAt.After(s.now()) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSecret(plain)), []byte(storedHash)) == 1
}
