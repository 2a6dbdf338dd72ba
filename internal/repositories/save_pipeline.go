package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/pkg/auth"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PasswordHasher hashes staged plaintext passwords
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// SavePreparer normalizes, hashes and validates a user before it is written.
// Every store driver runs it so that persistence rules do not depend on the backend.
type SavePreparer struct {
	hasher   PasswordHasher
	validate *validator.Validate
	now      func() time.Time
}

// NewSavePreparer creates a new SavePreparer
func NewSavePreparer(hasher PasswordHasher) *SavePreparer {
	v := validator.New()
	_ = v.RegisterValidation("account_email", func(fl validator.FieldLevel) bool {
		return models.ValidEmail(fl.Field().String())
	})

	return &SavePreparer{
		hasher:   hasher,
		validate: v,
		now:      time.Now,
	}
}

// SetClock overrides the time source
func (p *SavePreparer) SetClock(now func() time.Time) {
	p.now = now
}

// Prepare applies the save rules to u in place. New users receive an ID and
// creation timestamps; a staged password is hashed and, for existing users,
// PasswordChangedAt is stamped one second in the past so that a session
// issued right after the change stays valid.
func (p *SavePreparer) Prepare(ctx context.Context, u *models.User) error {
	now := p.now().UTC()
	isNew := u.IsNew()

	u.Email = models.NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	if plain, ok := u.PendingPassword(); ok {
		if err := auth.ValidatePassword(plain); err != nil {
			if errors.Is(err, auth.ErrPasswordTooShort) {
				return models.NewValidationError("Password must be at least 6 characters")
			}
			return models.NewValidationError("Password cannot be longer than 72 bytes")
		}

		hash, err := p.hasher.Hash(ctx, plain)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		u.PasswordHash = hash
		u.ClearPendingPassword()

		if !isNew {
			changedAt := now.Add(-time.Second)
			u.PasswordChangedAt = &changedAt
		}
	}

	if u.PasswordHash == "" {
		return models.NewValidationError("Password is required!")
	}

	if err := p.validate.Struct(u); err != nil {
		return validationError(err)
	}

	if isNew {
		u.ID = uuid.New().String()
		u.CreatedAt = now
		if u.LastLogin.IsZero() {
			u.LastLogin = now
		}
	}
	u.UpdatedAt = now

	return nil
}

// validationError converts the first failing field into a client-facing message
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return models.NewValidationError("Invalid user data")
	}

	fe := ve[0]
	switch fe.Field() {
	case "Email":
		if fe.Tag() == "required" {
			return models.NewValidationError("Please tell us your email")
		}
		return models.NewValidationError("Please fill a valid email address")
	case "Name":
		return models.NewValidationError("Name cannot be more than 50 characters")
	case "Role":
		return models.NewValidationError(fmt.Sprintf("Role must be one of: %s", fe.Param()))
	case "PasswordHash":
		return models.NewValidationError("Password is required!")
	default:
		return models.NewValidationError(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}
