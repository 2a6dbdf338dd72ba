package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/authcore/internal/models"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserRepository is the credential store as seen by the services.
// Reads only return active users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
}

// RequestMeta describes the client behind a request for audit records
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// operational passes *models.Error values through and turns anything else
// into a logged internal error.
func operational(logger *slog.Logger, op string, err error, attrs ...any) error {
	var opErr *models.Error
	if errors.As(err, &opErr) {
		return opErr
	}
	logger.Error(op+" failed", append(attrs, slog.Any("error", err))...)
	return models.NewError(models.ErrInternalServer, "%s failed", op)
}

// UserService handles admin user management
type UserService struct {
	repo        UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ListUsers returns a page of active users. Out-of-range paging values are clamped.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, operational(s.logger, "list users", err)
	}
	return users, nil
}

// DeactivateUser hides an account from every read path. Admins cannot
// deactivate themselves.
func (s *UserService) DeactivateUser(ctx context.Context, actor *models.User, id string, meta RequestMeta) error {
	if actor != nil && actor.ID == id {
		return models.NewValidationError("You cannot deactivate your own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewNotFoundError("No user found with that ID")
		}
		return operational(s.logger, "find user", err, slog.String("user_id", id))
	}

	user.IsActive = false
	if _, err := s.repo.Save(ctx, user); err != nil {
		return operational(s.logger, "deactivate user", err, slog.String("user_id", id))
	}

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	s.logger.Info("user deactivated", slog.String("user_id", id), slog.String("actor_id", actorID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountDeactivated,
		UserID:    id,
		ActorID:   actorID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return nil
}
