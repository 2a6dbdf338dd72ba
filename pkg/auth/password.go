package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBcryptCost = 11
	MinPasswordLen    = 6
	MaxPasswordLen    = 72 // bcrypt ignores input past 72 bytes
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", MaxPasswordLen)
)

// Hasher hashes and verifies passwords with bcrypt. At most maxConcurrent
// hash operations run at once; callers beyond that wait on ctx.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher creates a Hasher. cost <= 0 selects DefaultBcryptCost and
// maxConcurrent <= 0 selects GOMAXPROCS.
func NewHasher(cost int, maxConcurrent int64) *Hasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = int64(runtime.GOMAXPROCS(0))
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(maxConcurrent),
	}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer h.sem.Release(1)

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify reports whether password matches hash. A mismatch is not an error.
func (h *Hasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
}

// ValidatePassword enforces the stored password length bounds. The minimum
// counts characters, the maximum counts bytes.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}
