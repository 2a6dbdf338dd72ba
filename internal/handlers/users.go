package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/services"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
)

const (
	MsgUsersListed     = "Users fetched successfully"
	MsgUserDeactivated = "User deactivated successfully"
)

// UserService defines the interface for admin user management
type UserService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeactivateUser(ctx context.Context, actor *models.User, id string, meta services.RequestMeta) error
}

// UserHandler handles admin user-management requests
type UserHandler struct {
	service  UserService
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// UserResponse is the public view of a user. Hashes and secrets are never included.
type UserResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ToUserResponse converts a user model to a response DTO
func ToUserResponse(user *models.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       string(user.Role),
		IsVerified: user.IsVerified,
		LastLogin:  user.LastLogin,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

// ListUsersQuery holds the paging parameters of GET /admin/users
type ListUsersQuery struct {
	Limit  int `json:"limit" validate:"gte=0,lte=100"`
	Offset int `json:"offset" validate:"gte=0"`
}

// DeactivateUserParams holds the path parameters of the deactivate route
type DeactivateUserParams struct {
	ID string `json:"id" validate:"required,uuid"`
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(name + " must be a number")
	}
	return n, nil
}

// ListUsers returns a page of active users
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Router /auth/admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var q ListUsersQuery
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := ValidateRequest(q); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	users, err := h.service.ListUsers(r.Context(), q.Limit, q.Offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, ToUserResponse(u))
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MsgUsersListed, resp)
}

// DeactivateUser soft-deletes another user's account
// @Param id path string true "User ID"
// @Router /auth/admin/users/{id}/deactivate [patch]
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	params := DeactivateUserParams{ID: chi.URLParam(r, "id")}
	if err := ValidateRequest(params); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeactivateUser(r.Context(), actor, params.ID, requestMeta(r, h.ipConfig)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgUserDeactivated, nil)
}
