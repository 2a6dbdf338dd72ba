package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authcore/internal/middleware"
	"github.com/BradenHooton/authcore/internal/models"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the wired components the routes dispatch to
type Dependencies struct {
	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	Authenticator *auth.Authenticator
	Health        HealthChecker // nil for the in-memory store
	Logger        *slog.Logger
}

// Options configure the global middleware stack
type Options struct {
	Env            string
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	RateLimit      middlewareCustom.RateLimitConfig
}

// NewRouter builds the full HTTP handler: global middleware, health checks,
// the /api/v1/auth routes and JSON 404/405 envelopes.
func NewRouter(opts Options, deps Dependencies) chi.Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 10
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(opts.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(deps.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))
	router.Use(middleware.RequestSize(opts.MaxBodyBytes))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, fmt.Sprintf("Can't find %s on this server", r.URL.Path))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path), nil)
	})

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteSuccess(w, http.StatusOK, "Server is up and running...", nil)
	})
	router.Get("/health", healthHandler(deps.Health, deps.Logger))

	router.Route("/api", func(api chi.Router) {
		api.Use(middlewareCustom.RateLimitByIP(opts.RateLimit))
		api.Use(middlewareCustom.CSRFProtection(opts.AllowedOrigins, deps.Logger))
		api.Use(middleware.AllowContentType("application/json"))
		api.Route("/v1/auth", func(r chi.Router) {
			RegisterRoutes(r, deps)
		})
	})

	return router
}

// RegisterRoutes registers the auth and admin routes on a router mounted at /api/v1/auth
func RegisterRoutes(router chi.Router, deps Dependencies) {
	authHandler := deps.AuthHandler

	// Public routes - no session required
	router.Post("/signup", authHandler.Signup)
	router.Post("/login", authHandler.Login)
	router.Post("/forgot-password", authHandler.ForgotPassword)
	router.Post("/reset-password/{token}", authHandler.ResetPassword)

	// Protected routes - session cookie required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Authenticator))

		r.Get("/verify-token", authHandler.VerifyToken)
		r.Get("/current-user", authHandler.CurrentUser)
		r.Post("/logout", authHandler.Logout)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/resend-otp", authHandler.ResendOTP)

		r.With(auth.RequireVerified()).Patch("/update-user", authHandler.UpdateUser)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/admin/users", deps.UserHandler.ListUsers)
			r.Patch("/admin/users/{id}/deactivate", deps.UserHandler.DeactivateUser)
		})
	})
}

func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			pkghttp.WriteSuccess(w, http.StatusOK, "healthy", map[string]string{"database": "memory"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			logger.Error("health check failed", slog.Any("error", err))
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, "unhealthy", map[string]string{"database": "down"})
			return
		}
		pkghttp.WriteSuccess(w, http.StatusOK, "healthy", map[string]string{"database": "up"})
	}
}
