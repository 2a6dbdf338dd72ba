package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

const (
	MsgEmailRequired    = "Email is required"
	MsgNoUserWithEmail  = "No user found with that email!"
	MsgPasswordRequired = "Password is required"
	MsgResetLinkInvalid = "Invalid reset link or has expired"
)

// PasswordResetService runs the forgot/reset password flow
type PasswordResetService struct {
	repo        UserRepository
	secrets     *auth.SecretIssuer
	mailer      Mailer
	clientURL   string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewPasswordResetService creates a new PasswordResetService. Reset links
// point at {clientURL}/reset-password/{token}.
func NewPasswordResetService(
	repo UserRepository,
	secrets *auth.SecretIssuer,
	mailer Mailer,
	clientURL string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		repo:        repo,
		secrets:     secrets,
		mailer:      mailer,
		clientURL:   strings.TrimRight(clientURL, "/"),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ResetURL builds the client link carrying token
func (s *PasswordResetService) ResetURL(token string) string {
	return s.clientURL + "/reset-password/" + url.PathEscape(token)
}

// ForgotPassword issues a reset token for the account and emails the link.
// If delivery fails the token is withdrawn.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	if strings.TrimSpace(email) == "" {
		return models.NewValidationError(MsgEmailRequired)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewNotFoundError(MsgNoUserWithEmail)
		}
		return operational(s.logger, "find user by email", err)
	}

	token, err := s.secrets.IssueResetToken(user)
	if err != nil {
		return operational(s.logger, "issue reset token", err, slog.String("user_id", user.ID))
	}

	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return operational(s.logger, "store reset token", err, slog.String("user_id", user.ID))
	}

	if err := s.mailer.SendPasswordReset(ctx, saved.Email, saved.Name, s.ResetURL(token), *saved.ResetTokenExpiresAt); err != nil {
		s.logger.Error("failed to send password reset email",
			slog.String("user_id", saved.ID),
			slog.Any("error", err))

		saved.ClearResetToken()
		if _, clearErr := s.repo.Save(ctx, saved); clearErr != nil {
			s.logger.Error("failed to withdraw reset token",
				slog.String("user_id", saved.ID),
				slog.Any("error", clearErr))
		}
		return models.NewError(models.ErrInternalServer, MsgEmailSendFailure)
	}

	s.logger.Info("password reset requested", slog.String("user_id", saved.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordResetIssue,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
// The token is consumed only when the new password is stored.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, password string, meta RequestMeta) (*models.User, error) {
	if password == "" {
		return nil, models.NewValidationError(MsgPasswordRequired)
	}

	user, err := s.repo.FindByResetTokenHash(ctx, auth.HashSecret(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewValidationError(MsgResetLinkInvalid)
		}
		return nil, operational(s.logger, "find user by reset token", err)
	}

	if !s.secrets.VerifyResetToken(user, token) {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordReset,
			UserID:        user.ID,
			IPAddress:     meta.IPAddress,
			FailureReason: "expired_token",
		})
		return nil, models.NewValidationError(MsgResetLinkInvalid)
	}

	user.SetPassword(password)
	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, operational(s.logger, "reset password", err, slog.String("user_id", user.ID))
	}

	s.logger.Info("password reset", slog.String("user_id", saved.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return saved, nil
}
