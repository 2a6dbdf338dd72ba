package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

const (
	MsgOTPRequired      = "OTP code is required"
	MsgOTPInvalid       = "OTP code is invalid or expired"
	MsgAlreadyVerified  = "Email is already verified"
	MsgEmailSendFailure = "There was an error sending the email. Try again later!"
)

// EmailVerificationService issues and checks the emailed OTP codes
type EmailVerificationService struct {
	repo        UserRepository
	secrets     *auth.SecretIssuer
	mailer      Mailer
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	repo UserRepository,
	secrets *auth.SecretIssuer,
	mailer Mailer,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *EmailVerificationService {
	return &EmailVerificationService{
		repo:        repo,
		secrets:     secrets,
		mailer:      mailer,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// issue stages a new OTP on user; the caller persists it
func (s *EmailVerificationService) issue(user *models.User) (string, error) {
	code, err := s.secrets.IssueOTP(user)
	if err != nil {
		return "", operational(s.logger, "issue verification code", err)
	}
	return code, nil
}

func (s *EmailVerificationService) deliver(ctx context.Context, user *models.User, code string) error {
	if user.OTPExpiresAt == nil {
		return fmt.Errorf("user %s has no pending verification code", user.ID)
	}
	return s.mailer.SendVerificationCode(ctx, user.Email, user.Name, code, *user.OTPExpiresAt)
}

// VerifyEmail marks user verified when code matches its unexpired OTP.
// The code is single use.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, user *models.User, code string, meta RequestMeta) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError(MsgOTPRequired)
	}

	pending := *user
	if !s.secrets.VerifyOTP(&pending, code) {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventEmailVerified,
			UserID:        user.ID,
			IPAddress:     meta.IPAddress,
			FailureReason: "invalid_or_expired_code",
		})
		return nil, models.NewValidationError(MsgOTPInvalid)
	}

	pending.IsVerified = true
	saved, err := s.repo.Save(ctx, &pending)
	if err != nil {
		return nil, operational(s.logger, "verify email", err, slog.String("user_id", user.ID))
	}

	s.logger.Info("email verified", slog.String("user_id", saved.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventEmailVerified,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return saved, nil
}

// ResendOTP replaces the pending code of an unverified user and emails it
func (s *EmailVerificationService) ResendOTP(ctx context.Context, user *models.User, meta RequestMeta) error {
	if user.IsVerified {
		return models.NewValidationError(MsgAlreadyVerified)
	}

	pending := *user
	code, err := s.issue(&pending)
	if err != nil {
		return err
	}

	saved, err := s.repo.Save(ctx, &pending)
	if err != nil {
		return operational(s.logger, "store verification code", err, slog.String("user_id", user.ID))
	}

	if err := s.deliver(ctx, saved, code); err != nil {
		s.logger.Error("failed to send verification code",
			slog.String("user_id", saved.ID),
			slog.Any("error", err))
		return models.NewError(models.ErrInternalServer, MsgEmailSendFailure)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventOTPIssued,
		UserID:    saved.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return nil
}
