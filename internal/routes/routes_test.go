package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authcore/internal/middleware"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/repositories"
	"github.com/BradenHooton/authcore/internal/routes"
	"github.com/BradenHooton/authcore/internal/services"
	pkgauth "github.com/BradenHooton/authcore/pkg/auth"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const clientURL = "http://localhost:5173"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// app is the full router wired over the in-memory store
type app struct {
	t      *testing.T
	router http.Handler
	repo   *repositories.MemoryUserRepository
	mailer *services.MockMailer
	clock  *clock
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newApp(t *testing.T, health routes.HealthChecker) *app {
	t.Helper()

	c := &clock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)

	hasher := pkgauth.NewHasher(bcrypt.MinCost, 4)
	preparer := repositories.NewSavePreparer(hasher)
	preparer.SetClock(c.Now)
	repo := repositories.NewMemoryUserRepository(preparer)

	secrets := auth.NewSecretIssuer(auth.DefaultOTPExpiry, auth.DefaultResetTokenExpiry)
	secrets.SetClock(c.Now)
	tokens := auth.NewTokenManager("routes-test-secret-32-characters", 24*time.Hour)
	tokens.SetClock(c.Now)

	mailer := &services.MockMailer{}
	verification := services.NewEmailVerificationService(repo, secrets, mailer, logger, audit)
	authService := services.NewAuthService(repo, hasher, tokens, verification, auth.NewTimingDelay(auth.TimingConfig{}), logger, audit)
	authService.SetClock(c.Now)
	reset := services.NewPasswordResetService(repo, secrets, mailer, clientURL, logger, audit)
	users := services.NewUserService(repo, logger, audit)

	deps := routes.Dependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, verification, reset, auth.DefaultCookieConfig("development"), nil, logger),
		UserHandler:   handlers.NewUserHandler(users, nil, logger),
		Authenticator: auth.NewAuthenticator(tokens, repo, logger),
		Health:        health,
		Logger:        logger,
	}
	opts := routes.Options{
		Env:            "development",
		AllowedOrigins: []string{clientURL},
		RateLimit:      middlewareCustom.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}

	return &app{t: t, router: routes.NewRouter(opts, deps), repo: repo, mailer: mailer, clock: c}
}

// do sends a request, optionally with a JSON body and session cookie
func (a *app) do(method, path string, body interface{}, session *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.AddCookie(session)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func userData(t *testing.T, env envelope) handlers.UserResponse {
	t.Helper()
	var u handlers.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func (a *app) signup(name, email, password string) (*http.Cookie, handlers.UserResponse) {
	a.t.Helper()
	w, env := a.do("POST", "/api/v1/auth/signup", map[string]string{"name": name, "email": email, "password": password}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, env.Message)
	return sessionCookie(a.t, w), userData(a.t, env)
}

func TestScenario_SignupLoginCurrentUser(t *testing.T) {
	a := newApp(t, nil)

	w, env := a.do("POST", "/api/v1/auth/signup", map[string]string{"email": "a@b.com", "name": "A", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, pkghttp.StatusSuccess, env.Status)
	assert.Equal(t, handlers.MsgSignedUp, env.Message)
	created := userData(t, env)
	assert.False(t, created.IsVerified)
	assert.True(t, sessionCookie(t, w).HttpOnly)

	stored, err := a.repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.NotEqual(t, "secret1", stored.PasswordHash)

	a.clock.Advance(time.Hour)
	w, env = a.do("POST", "/api/v1/auth/login", map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	loggedIn := userData(t, env)
	assert.True(t, loggedIn.LastLogin.After(created.LastLogin))
	session := sessionCookie(t, w)

	w, env = a.do("GET", "/api/v1/auth/current-user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, pkghttp.StatusFail, env.Status)
	assert.Equal(t, auth.MsgNotLoggedIn, env.Message)

	w, env = a.do("GET", "/api/v1/auth/current-user", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, userData(t, env).ID)

	w, _ = a.do("GET", "/api/v1/auth/verify-token", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScenario_EmailVerificationGatesProfileUpdate(t *testing.T) {
	a := newApp(t, nil)
	session, _ := a.signup("Jane", "jane@example.com", "secret123")
	mail, ok := a.mailer.Last()
	require.True(t, ok)

	w, env := a.do("PATCH", "/api/v1/auth/update-user", map[string]string{"name": "Janet"}, session)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, auth.MsgVerifyEmailFirst, env.Message)

	w, env = a.do("POST", "/api/v1/auth/verify-email", map[string]string{"otpCode": mail.Secret}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, handlers.MsgEmailVerified, env.Message)

	w, env = a.do("POST", "/api/v1/auth/verify-email", map[string]string{"otpCode": mail.Secret}, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.MsgOTPInvalid, env.Message)

	w, env = a.do("POST", "/api/v1/auth/resend-otp", nil, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.MsgAlreadyVerified, env.Message)

	w, env = a.do("PATCH", "/api/v1/auth/update-user", map[string]string{"name": "Janet"}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, "Janet", userData(t, env).Name)
	assert.True(t, userData(t, env).IsVerified)
}

func TestScenario_PasswordResetInvalidatesOldSessions(t *testing.T) {
	a := newApp(t, nil)
	oldSession, _ := a.signup("Jane", "jane@example.com", "secret123")

	a.clock.Advance(time.Minute)
	w, env := a.do("POST", "/api/v1/auth/forgot-password", map[string]string{"email": "jane@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	mail, ok := a.mailer.Last()
	require.True(t, ok)
	token := strings.TrimPrefix(mail.Secret, clientURL+"/reset-password/")

	a.clock.Advance(time.Minute)
	w, env = a.do("POST", "/api/v1/auth/reset-password/"+token, map[string]string{"password": "brand-new-pass"}, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, handlers.MsgPasswordReset, env.Message)

	w, env = a.do("GET", "/api/v1/auth/current-user", nil, oldSession)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, auth.MsgPasswordChanged, env.Message)

	a.clock.Advance(time.Second)
	w, _ = a.do("POST", "/api/v1/auth/login", map[string]string{"email": "jane@example.com", "password": "brand-new-pass"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = a.do("GET", "/api/v1/auth/current-user", nil, sessionCookie(t, w))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = a.do("POST", "/api/v1/auth/reset-password/"+token, map[string]string{"password": "another-pass"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.MsgResetLinkInvalid, env.Message)
}

func TestScenario_Logout(t *testing.T) {
	a := newApp(t, nil)
	session, _ := a.signup("Jane", "jane@example.com", "secret123")

	w, env := a.do("POST", "/api/v1/auth/logout", nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handlers.MsgLoggedOut, env.Message)
	cleared := sessionCookie(t, w)
	assert.Empty(t, cleared.Value)

	w, _ = a.do("POST", "/api/v1/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScenario_AdminRoutes(t *testing.T) {
	a := newApp(t, nil)
	userSession, user := a.signup("Jane", "jane@example.com", "secret123")
	_, admin := a.signup("Admin", "admin@example.com", "secret123")

	stored, err := a.repo.FindByID(context.Background(), admin.ID)
	require.NoError(t, err)
	stored.Role = models.RoleAdmin
	_, err = a.repo.Save(context.Background(), stored)
	require.NoError(t, err)
	w, _ := a.do("POST", "/api/v1/auth/login", map[string]string{"email": "admin@example.com", "password": "secret123"}, nil)
	adminSession := sessionCookie(t, w)

	w, env := a.do("GET", "/api/v1/auth/admin/users", nil, userSession)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, auth.MsgForbidden, env.Message)

	w, env = a.do("GET", "/api/v1/auth/admin/users", nil, adminSession)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []handlers.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 2)

	w, _ = a.do("PATCH", "/api/v1/auth/admin/users/"+user.ID+"/deactivate", nil, adminSession)
	require.Equal(t, http.StatusOK, w.Code)

	// Deactivated users are invisible to session checks and login
	w, env = a.do("GET", "/api/v1/auth/current-user", nil, userSession)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, auth.MsgUserGone, env.Message)

	w, env = a.do("POST", "/api/v1/auth/login", map[string]string{"email": "jane@example.com", "password": "secret123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.MsgInvalidCredentials, env.Message)

	// The address is free again
	a.signup("Jane Again", "jane@example.com", "secret123")
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	a := newApp(t, nil)

	w, env := a.do("GET", "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Can't find /api/v1/nope on this server", env.Message)

	w, env = a.do("GET", "/api/v1/auth/login", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, pkghttp.StatusFail, env.Status)
}

func TestRouter_BodyLimit(t *testing.T) {
	a := newApp(t, nil)

	w, env := a.do("POST", "/api/v1/auth/signup", map[string]string{
		"name":     strings.Repeat("x", 11<<10),
		"email":    "big@example.com",
		"password": "secret123",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handlers.MsgInvalidBody, env.Message)
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(ctx context.Context) error { return s.err }

func TestRouter_Health(t *testing.T) {
	w, env := newApp(t, stubHealth{}).do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"up"}`, string(env.Data))

	w, env = newApp(t, stubHealth{err: errors.New("connection refused")}).do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, pkghttp.StatusError, env.Status)

	w, env = newApp(t, nil).do("GET", "/", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is up and running...", env.Message)
}

func TestScenario_EmailChangeRequiresReverification(t *testing.T) {
	a := newApp(t, nil)
	session, _ := a.signup("Jane", "jane@example.com", "secret123")
	mail, ok := a.mailer.Last()
	require.True(t, ok)

	w, env := a.do("POST", "/api/v1/auth/verify-email", map[string]string{"otpCode": mail.Secret}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, env = a.do("PATCH", "/api/v1/auth/update-user", map[string]string{"email": "other@example.com"}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	changed := userData(t, env)
	assert.Equal(t, "other@example.com", changed.Email)
	assert.False(t, changed.IsVerified)

	// The verified-only route closes until the new address is confirmed
	w, env = a.do("PATCH", "/api/v1/auth/update-user", map[string]string{"name": "Janet"}, session)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, auth.MsgVerifyEmailFirst, env.Message)

	mail, ok = a.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "other@example.com", mail.To)

	w, env = a.do("POST", "/api/v1/auth/verify-email", map[string]string{"otpCode": mail.Secret}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, env = a.do("PATCH", "/api/v1/auth/update-user", map[string]string{"name": "Janet"}, session)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.True(t, userData(t, env).IsVerified)
}

func TestRouter_RejectsCrossSiteRequests(t *testing.T) {
	a := newApp(t, nil)
	session, _ := a.signup("Jane", "jane@example.com", "secret123")

	send := func(req *http.Request) *httptest.ResponseRecorder {
		req.AddCookie(session)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w
	}

	// A foreign page posting an empty form still carries the session cookie
	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := send(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Result().Cookies())

	req = httptest.NewRequest("PATCH", "/api/v1/auth/update-user", strings.NewReader("name=Mallory"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnsupportedMediaType, send(req).Code)

	req = httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Origin", clientURL)
	assert.Equal(t, http.StatusOK, send(req).Code)
}
