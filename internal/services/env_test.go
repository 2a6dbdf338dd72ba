package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/repositories"
	pkgauth "github.com/BradenHooton/authcore/pkg/auth"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testClientURL = "http://localhost:5173"

// testClock is a settable time source shared by every component of a testEnv
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testEnv wires the services over the in-memory store
type testEnv struct {
	clock        *testClock
	repo         *repositories.MemoryUserRepository
	hasher       *pkgauth.Hasher
	secrets      *auth.SecretIssuer
	tokens       *auth.TokenManager
	mailer       *MockMailer
	auth         *AuthService
	verification *EmailVerificationService
	reset        *PasswordResetService
	users        *UserService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)}
	logger := discardLogger()
	audit := pkglogger.NewAuditLogger(logger)

	hasher := pkgauth.NewHasher(bcrypt.MinCost, 4)
	preparer := repositories.NewSavePreparer(hasher)
	preparer.SetClock(clock.Now)
	repo := repositories.NewMemoryUserRepository(preparer)

	secrets := auth.NewSecretIssuer(auth.DefaultOTPExpiry, auth.DefaultResetTokenExpiry)
	secrets.SetClock(clock.Now)

	tokens := auth.NewTokenManager("services-secret-32-characters!!!", time.Hour)
	tokens.SetClock(clock.Now)

	mailer := &MockMailer{}
	verification := NewEmailVerificationService(repo, secrets, mailer, logger, audit)
	authService := NewAuthService(repo, hasher, tokens, verification, auth.NewTimingDelay(auth.TimingConfig{}), logger, audit)
	authService.SetClock(clock.Now)

	return &testEnv{
		clock:        clock,
		repo:         repo,
		hasher:       hasher,
		secrets:      secrets,
		tokens:       tokens,
		mailer:       mailer,
		auth:         authService,
		verification: verification,
		reset:        NewPasswordResetService(repo, secrets, mailer, testClientURL, logger, audit),
		users:        NewUserService(repo, logger, audit),
	}
}

// signup creates a user through the service and returns the stored record
func (e *testEnv) signup(t *testing.T, name, email, password string) *models.User {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), SignupInput{Name: name, Email: email, Password: password}, RequestMeta{})
	require.NoError(t, err)
	return res.User
}

// reload fetches the current stored copy of u
func (e *testEnv) reload(t *testing.T, u *models.User) *models.User {
	t.Helper()
	fresh, err := e.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}
