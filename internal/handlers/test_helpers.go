package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/services"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUser attaches an authenticated user to the request context, as RequireAuth would
func WithUser(req *http.Request, user *models.User) *http.Request {
	ac := &auth.AuthContext{
		User:   user,
		Claims: &models.SessionClaims{UserID: user.ID},
	}
	return req.WithContext(auth.WithAuthContext(req.Context(), ac))
}

// TestUser returns a verified user with fixed fields
func TestUser() *models.User {
	return &models.User{
		ID:           "7b0f0c43-1a55-4d5e-9f0a-3c2b6a1e9d11",
		Name:         "Jane",
		Email:        "jane@example.com",
		PasswordHash: "$2a$04$hash",
		Role:         models.RoleUser,
		IsVerified:   true,
		IsActive:     true,
	}
}

// DecodeEnvelope checks the status code and content type and decodes the envelope.
// When data is non-nil the envelope's data field is decoded into it.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, data interface{}) pkghttp.Response {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var raw struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	if data != nil {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode envelope data: %v", err)
		}
	}
	return pkghttp.Response{Status: raw.Status, Message: raw.Message}
}

// AssertErrorResponse checks that the response is a failure envelope with the given message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	t.Helper()
	resp := DecodeEnvelope(t, w, expectedStatus, nil)
	if expectedStatus >= 500 {
		assert.Equal(t, pkghttp.StatusError, resp.Status)
	} else {
		assert.Equal(t, pkghttp.StatusFail, resp.Status)
	}
	assert.Equal(t, expectedMessage, resp.Message)
}

// SessionCookie returns the session cookie set on the response, if any
func SessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc        func(ctx context.Context, in services.SignupInput, meta services.RequestMeta) (*services.AuthResult, error)
	LoginFunc         func(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResult, error)
	UpdateProfileFunc func(ctx context.Context, user *models.User, name, email *string, meta services.RequestMeta) (*models.User, error)
}

func (m *MockAuthService) Signup(ctx context.Context, in services.SignupInput, meta services.RequestMeta) (*services.AuthResult, error) {
	if m.SignupFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.SignupFunc(ctx, in, meta)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResult, error) {
	if m.LoginFunc == nil {
		return nil, models.NewUnauthorizedError(services.MsgInvalidCredentials)
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, user *models.User, name, email *string, meta services.RequestMeta) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return user, nil
	}
	return m.UpdateProfileFunc(ctx, user, name, email, meta)
}

// MockEmailVerificationService implements EmailVerificationServiceInterface for testing
type MockEmailVerificationService struct {
	VerifyEmailFunc func(ctx context.Context, user *models.User, code string, meta services.RequestMeta) (*models.User, error)
	ResendOTPFunc   func(ctx context.Context, user *models.User, meta services.RequestMeta) error
}

func (m *MockEmailVerificationService) VerifyEmail(ctx context.Context, user *models.User, code string, meta services.RequestMeta) (*models.User, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.NewValidationError(services.MsgOTPInvalid)
	}
	return m.VerifyEmailFunc(ctx, user, code, meta)
}

func (m *MockEmailVerificationService) ResendOTP(ctx context.Context, user *models.User, meta services.RequestMeta) error {
	if m.ResendOTPFunc == nil {
		return nil
	}
	return m.ResendOTPFunc(ctx, user, meta)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	ForgotPasswordFunc func(ctx context.Context, email string, meta services.RequestMeta) error
	ResetPasswordFunc  func(ctx context.Context, token, password string, meta services.RequestMeta) (*models.User, error)
}

func (m *MockPasswordResetService) ForgotPassword(ctx context.Context, email string, meta services.RequestMeta) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email, meta)
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, token, password string, meta services.RequestMeta) (*models.User, error) {
	if m.ResetPasswordFunc == nil {
		return nil, models.NewValidationError(services.MsgResetLinkInvalid)
	}
	return m.ResetPasswordFunc(ctx, token, password, meta)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	ListUsersFunc      func(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeactivateUserFunc func(ctx context.Context, actor *models.User, id string, meta services.RequestMeta) error
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockUserService) DeactivateUser(ctx context.Context, actor *models.User, id string, meta services.RequestMeta) error {
	if m.DeactivateUserFunc == nil {
		return nil
	}
	return m.DeactivateUserFunc(ctx, actor, id, meta)
}
