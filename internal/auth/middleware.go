package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/authcore/internal/models"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AuthContextKey is the key for storing the authenticated session in context
	AuthContextKey contextKey = "auth"
)

// Client-facing messages of the authorization chain
const (
	MsgNotLoggedIn      = "You are not logged in. Please log in to get access."
	MsgInvalidSession   = "Invalid or expired session. Please log in again."
	MsgUserGone         = "The user belonging to this session no longer exists."
	MsgPasswordChanged  = "User recently changed password. Please log in again."
	MsgForbidden        = "You do not have permission to perform this action."
	MsgVerifyEmailFirst = "Please verify your email address first."
)

// AuthContext is the authenticated principal attached to a request
type AuthContext struct {
	User   *models.User
	Claims *models.SessionClaims
}

// SessionVerifier validates a raw session token
type SessionVerifier interface {
	Validate(token string) (*models.SessionClaims, error)
}

// UserLookup loads active users by ID
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator resolves the session cookie of a request into an AuthContext
type Authenticator struct {
	tokens SessionVerifier
	users  UserLookup
	logger *slog.Logger
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(tokens SessionVerifier, users UserLookup, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Authenticate runs the session checks in order: cookie present, token valid,
// user still active, password unchanged since the token was issued.
func (a *Authenticator) Authenticate(r *http.Request) (*AuthContext, error) {
	token, err := GetSessionCookie(r)
	if err != nil {
		return nil, models.NewUnauthorizedError(MsgNotLoggedIn)
	}

	claims, err := a.tokens.Validate(token)
	if err != nil {
		return nil, models.NewUnauthorizedError(MsgInvalidSession)
	}

	user, err := a.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewUnauthorizedError(MsgUserGone)
		}
		a.logger.Error("failed to load session user",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()))
		return nil, models.NewError(models.ErrInternalServer, "failed to load session user")
	}

	if !user.IsActive {
		return nil, models.NewUnauthorizedError(MsgUserGone)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, models.NewUnauthorizedError(MsgPasswordChanged)
	}

	return &AuthContext{User: user, Claims: claims}, nil
}

// Authorize returns ac unchanged when its user holds one of roles.
func Authorize(ac *AuthContext, roles ...models.Role) (*AuthContext, error) {
	if ac == nil || ac.User == nil {
		return nil, models.NewUnauthorizedError(MsgNotLoggedIn)
	}
	if !ac.User.HasRole(roles...) {
		return nil, models.NewForbiddenError(MsgForbidden)
	}
	return ac, nil
}

// RequireAuth authenticates the request and injects the AuthContext
func RequireAuth(a *Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := a.Authenticate(r)
			if err != nil {
				pkghttp.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
		})
	}
}

// RequireRole enforces role-based access control. Must run after RequireAuth.
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := Authorize(FromContext(r.Context()), roles...); err != nil {
				pkghttp.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified rejects users who have not confirmed their email address.
// Must run after RequireAuth.
func RequireVerified() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromContext(r.Context())
			if ac == nil || ac.User == nil {
				pkghttp.WriteUnauthorized(w, MsgNotLoggedIn)
				return
			}
			if !ac.User.IsVerified {
				pkghttp.WriteForbidden(w, MsgVerifyEmailFirst)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext extracts the AuthContext attached by RequireAuth
func FromContext(ctx context.Context) *AuthContext {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return ac
}

// WithAuthContext returns a copy of ctx carrying ac
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}
