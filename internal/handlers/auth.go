package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/services"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// Success messages returned in the response envelope
const (
	MsgSignedUp       = "User created successfully"
	MsgLoggedIn       = "Logged in successfully"
	MsgLoggedOut      = "Logged out successfully"
	MsgSessionValid   = "Session is valid"
	MsgCurrentUser    = "Current user fetched successfully"
	MsgProfileUpdated = "Profile updated successfully"
	MsgEmailVerified  = "Email verification successful"
	MsgOTPResent      = "A new verification code has been sent to your email"
	MsgResetLinkSent  = "Password reset link sent successfully"
	MsgPasswordReset  = "Password reset successful"
	MsgInvalidBody    = "Invalid request body"
)

// AuthServiceInterface defines the interface for signup, login and profile updates
type AuthServiceInterface interface {
	Signup(ctx context.Context, in services.SignupInput, meta services.RequestMeta) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResult, error)
	UpdateProfile(ctx context.Context, user *models.User, name, email *string, meta services.RequestMeta) (*models.User, error)
}

// EmailVerificationServiceInterface defines the interface for OTP verification
type EmailVerificationServiceInterface interface {
	VerifyEmail(ctx context.Context, user *models.User, code string, meta services.RequestMeta) (*models.User, error)
	ResendOTP(ctx context.Context, user *models.User, meta services.RequestMeta) error
}

// PasswordResetServiceInterface defines the interface for the reset-link flow
type PasswordResetServiceInterface interface {
	ForgotPassword(ctx context.Context, email string, meta services.RequestMeta) error
	ResetPassword(ctx context.Context, token, password string, meta services.RequestMeta) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	verification EmailVerificationServiceInterface
	reset        PasswordResetServiceInterface
	cookies      auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	verification EmailVerificationServiceInterface,
	reset PasswordResetServiceInterface,
	cookies auth.CookieConfig,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:      service,
		verification: verification,
		reset:        reset,
		cookies:      cookies,
		ipConfig:     ipConfig,
		logger:       logger,
	}
}

// Request DTOs

// SignupRequest represents the request body for signup
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest carries the optional profile fields. Absent fields stay untouched.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	OTPCode string `json:"otpCode" validate:"required,numeric,len=6"`
}

// ForgotPasswordRequest represents the request body for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the request body for setting a new password
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// requestMeta captures the caller's address and agent for audit records
func requestMeta(r *http.Request, ipConfig *pkghttp.IPConfig) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// writeError renders err and logs anything that is not an operational error
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if pkghttp.WriteError(w, err) {
		return
	}
	var coded pkghttp.CodedError
	if errors.As(err, &coded) {
		// Already logged where it was classified
		return
	}
	logger.ErrorContext(r.Context(), "unhandled request error",
		slog.String("method", r.Method),
		slog.String("path", pkglogger.SanitizePath(r.URL.Path)),
		slog.String("error", err.Error()))
}

// decode reads the JSON body into dst, writing a 400 on failure
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := pkghttp.DecodeJSON(r, dst); err != nil {
		pkghttp.WriteBadRequest(w, MsgInvalidBody)
		return false
	}
	return true
}

// currentUser returns the authenticated user, writing a 401 when there is none
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	ac := auth.FromContext(r.Context())
	if ac == nil || ac.User == nil {
		pkghttp.WriteUnauthorized(w, auth.MsgNotLoggedIn)
		return nil, false
	}
	return ac.User, true
}

// startSession sets the session cookie and writes the user envelope
func (h *AuthHandler) startSession(w http.ResponseWriter, status int, message string, res *services.AuthResult) {
	auth.SetSessionCookie(w, res.Token, res.ExpiresIn, h.cookies)
	pkghttp.WriteSuccess(w, status, message, ToUserResponse(res.User))
}

// Signup handles account creation
// @Summary Create an account
// @Accept json
// @Param request body SignupRequest true "Signup request"
// @Produce json
// @Success 201 {object} pkghttp.Response
// @Failure 400 {object} pkghttp.Response
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(r, h.ipConfig))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusCreated, MsgSignedUp, res)
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} pkghttp.Response
// @Failure 400 {object} pkghttp.Response
// @Failure 401 {object} pkghttp.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password, requestMeta(r, h.ipConfig))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusOK, MsgLoggedIn, res)
}

// Logout clears the session cookie. Tokens are not revoked server-side.
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteSuccess(w, http.StatusOK, MsgLoggedOut, nil)
}

// VerifyToken confirms the session cookie still authenticates a user
// @Router /auth/verify-token [get]
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MsgSessionValid, ToUserResponse(user))
}

// CurrentUser returns the authenticated user
// @Router /auth/current-user [get]
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MsgCurrentUser, ToUserResponse(user))
}

// UpdateUser changes the caller's name and/or email
// @Accept json
// @Param request body UpdateUserRequest true "Profile fields"
// @Router /auth/update-user [patch]
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user, req.Name, req.Email, requestMeta(r, h.ipConfig))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgProfileUpdated, ToUserResponse(updated))
}

// VerifyEmail checks the emailed OTP for the authenticated user
// @Accept json
// @Param request body VerifyEmailRequest true "Verify email request"
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}
	req.OTPCode = strings.TrimSpace(req.OTPCode)
	if err := ValidateRequest(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.verification.VerifyEmail(r.Context(), user, req.OTPCode, requestMeta(r, h.ipConfig)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgEmailVerified, nil)
}

// ResendOTP mails a fresh verification code to the authenticated user
// @Router /auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.verification.ResendOTP(r.Context(), user, requestMeta(r, h.ipConfig)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgOTPResent, nil)
}

// ForgotPassword mails a reset link
// @Accept json
// @Param request body ForgotPasswordRequest true "Forgot password request"
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.reset.ForgotPassword(r.Context(), req.Email, requestMeta(r, h.ipConfig)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgResetLinkSent, nil)
}

// ResetPassword sets a new password using the token from the reset link
// @Accept json
// @Param token path string true "Reset token"
// @Param request body ResetPasswordRequest true "Reset password request"
// @Router /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.reset.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, requestMeta(r, h.ipConfig))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, MsgPasswordReset, ToUserResponse(user))
}
