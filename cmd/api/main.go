package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/authcore/internal/auth"
	"github.com/BradenHooton/authcore/internal/background"
	"github.com/BradenHooton/authcore/internal/config"
	"github.com/BradenHooton/authcore/internal/database"
	"github.com/BradenHooton/authcore/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authcore/internal/middleware"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/internal/repositories"
	"github.com/BradenHooton/authcore/internal/routes"
	"github.com/BradenHooton/authcore/internal/services"
	pkgauth "github.com/BradenHooton/authcore/pkg/auth"
	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

// userStore is what the services, the authenticator and the cleanup worker need from a store
type userStore interface {
	services.UserRepository
	background.SecretCleaner
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Server.StoreDriver),
		slog.String("email", cfg.Email.Driver),
	)

	// Password hashing and the save pipeline shared by every store
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.MaxConcurrentHashes)
	preparer := repositories.NewSavePreparer(hasher)

	// Initialize the credential store
	var (
		store  userStore
		health routes.HealthChecker
	)
	switch cfg.Server.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = repositories.NewMemoryUserRepository(preparer)
	default:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.RunMigrations {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := db.Migrate(ctx)
			cancel()
			if err != nil {
				logger.Error("failed to run migrations", slog.Any("error", err))
				db.Close()
				os.Exit(1)
			}
		}

		store = repositories.NewUserRepository(db, preparer)
		health = db
	}

	// Outbound mail
	var mailer services.Mailer
	switch cfg.Email.Driver {
	case config.EmailDriverSES:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesMailer, err := services.NewSESMailer(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	default:
		mailer = services.NewLogMailer(logger)
	}

	// Token and secret issuance
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
	secretIssuer := auth.NewSecretIssuer(cfg.Auth.OTPExpiry, cfg.Auth.ResetTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.LoginBaseDelay,
		RandomDelay: cfg.Auth.LoginRandomDelay,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	verificationService := services.NewEmailVerificationService(store, secretIssuer, mailer, logger, auditLogger)
	authService := services.NewAuthService(store, hasher, tokenManager, verificationService, timingDelay, logger, auditLogger)
	resetService := services.NewPasswordResetService(store, secretIssuer, mailer, cfg.Server.ClientURL, logger, auditLogger)
	userService := services.NewUserService(store, logger, auditLogger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}
	authHandler := handlers.NewAuthHandler(authService, verificationService, resetService, cookieConfig, ipConfig, logger)
	userHandler := handlers.NewUserHandler(userService, ipConfig, logger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, store, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	router := routes.NewRouter(routes.Options{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RateLimit: middlewareCustom.RateLimitConfig{
			Requests: cfg.Server.RateLimitRequests,
			Window:   cfg.Server.RateLimitWindow,
			IPConfig: ipConfig,
		},
	}, routes.Dependencies{
		AuthHandler:   authHandler,
		UserHandler:   userHandler,
		Authenticator: auth.NewAuthenticator(tokenManager, store, logger),
		Health:        health,
		Logger:        logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(store, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		exitCode = 1
	}

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, store services.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := store.FindByEmail(ctx, models.NormalizeEmail(adminEmail))
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	admin := models.NewUser("Admin", adminEmail, adminPassword)
	admin.Role = models.RoleAdmin
	admin.IsVerified = true

	if _, err := store.Save(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully", pkglogger.EmailAttr(adminEmail))
	return nil
}
