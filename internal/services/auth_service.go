package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

// Client-facing messages
const (
	MsgAllFieldsRequired   = "All fields are required!"
	MsgUserExists          = "User already exists"
	MsgCredentialsRequired = "Email and password are required"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgProfileFieldMissing = "At least one field is required"
)

// PasswordManager hashes and verifies passwords
type PasswordManager interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// SessionIssuer signs session tokens
type SessionIssuer interface {
	Issue(userID string) (string, error)
	Expiry() time.Duration
}

// AuthResult is a persisted user plus a freshly issued session token
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresIn time.Duration
}

// SignupInput carries the signup form
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService handles signup, login and profile updates
type AuthService struct {
	repo        UserRepository
	passwords   PasswordManager
	tokens      SessionIssuer
	otp         *EmailVerificationService
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	passwords PasswordManager,
	tokens SessionIssuer,
	otp *EmailVerificationService,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		passwords:   passwords,
		tokens:      tokens,
		otp:         otp,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// SetClock overrides the time source used to stamp LastLogin
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) issueSession(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, operational(s.logger, "issue session token", err, slog.String("user_id", user.ID))
	}
	return &AuthResult{User: user, Token: token, ExpiresIn: s.tokens.Expiry()}, nil
}

// Signup creates an unverified account, emails its verification code and
// opens a session.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, meta RequestMeta) (*AuthResult, error) {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return nil, models.NewValidationError(MsgAllFieldsRequired)
	}

	_, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, models.NewDuplicateKeyError(MsgUserExists)
	case !errors.Is(err, models.ErrNotFound):
		return nil, operational(s.logger, "check existing user", err)
	}

	user := models.NewUser(in.Name, in.Email, in.Password)
	code, err := s.otp.issue(user)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, models.NewDuplicateKeyError(MsgUserExists)
		}
		return nil, operational(s.logger, "create user", err)
	}

	// The account exists even if delivery fails; the code can be resent.
	if err := s.otp.deliver(ctx, saved, code); err != nil {
		s.logger.Warn("verification email not delivered after signup",
			slog.String("user_id", saved.ID),
			slog.Any("error", err))
	}

	s.logger.Info("user signed up", slog.String("user_id", saved.ID), pkglogger.EmailAttr(saved.Email))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventSignup,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return s.issueSession(saved)
}

// dummy returns a hash compared against when the email is unknown so that
// both failure paths pay for one bcrypt comparison.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash(context.Background(), "authcore-timing-placeholder")
		if err != nil {
			s.logger.Warn("failed to prepare timing placeholder hash", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) loginFailed(ctx context.Context, start time.Time, userID, reason string, meta RequestMeta) error {
	s.logger.Info("login failed", slog.String("reason", reason))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		UserID:        userID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		FailureReason: reason,
	})
	s.timing.WaitFrom(ctx, start, false)
	return models.NewUnauthorizedError(MsgInvalidCredentials)
}

// Login checks credentials, records the login time and opens a session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError(MsgCredentialsRequired)
	}

	start := time.Now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if dummy := s.dummy(); dummy != "" {
				_, _ = s.passwords.Verify(ctx, password, dummy)
			}
			return nil, s.loginFailed(ctx, start, "", "invalid_credentials", meta)
		}
		return nil, operational(s.logger, "find user by email", err)
	}

	ok, err := s.passwords.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, operational(s.logger, "verify password", err, slog.String("user_id", user.ID))
	}
	if !ok {
		return nil, s.loginFailed(ctx, start, user.ID, "invalid_credentials", meta)
	}

	user.LastLogin = s.now().UTC()
	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, operational(s.logger, "record login", err, slog.String("user_id", user.ID))
	}

	s.logger.Info("user logged in", slog.String("user_id", saved.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return s.issueSession(saved)
}

// UpdateProfile changes the name and/or email of user. Nil or blank fields are left as is.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, name, email *string, meta RequestMeta) (*models.User, error) {
	hasName := name != nil && strings.TrimSpace(*name) != ""
	hasEmail := email != nil && strings.TrimSpace(*email) != ""
	if !hasName && !hasEmail {
		return nil, models.NewValidationError(MsgProfileFieldMissing)
	}

	updated := *user
	changed := make([]string, 0, 2)
	if hasName {
		updated.Name = *name
		changed = append(changed, "name")
	}
	var code string
	if hasEmail {
		updated.Email = *email
		changed = append(changed, "email")

		// A new address has to be proven again before the verified gate reopens.
		if models.NormalizeEmail(*email) != user.Email {
			updated.IsVerified = false
			var err error
			if code, err = s.otp.issue(&updated); err != nil {
				return nil, err
			}
		}
	}

	saved, err := s.repo.Save(ctx, &updated)
	if err != nil {
		return nil, operational(s.logger, "update profile", err, slog.String("user_id", user.ID))
	}

	if code != "" {
		if err := s.otp.deliver(ctx, saved, code); err != nil {
			s.logger.Warn("verification email not delivered after email change",
				slog.String("user_id", saved.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("profile updated", slog.String("user_id", saved.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventProfileUpdated,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Metadata:  map[string]string{"fields": strings.Join(changed, ",")},
	})

	return saved, nil
}
