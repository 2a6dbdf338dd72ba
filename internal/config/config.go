package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Email drivers
const (
	EmailDriverSES = "ses"
	EmailDriverLog = "log"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	RunMigrations     bool
}

type ServerConfig struct {
	Port              string
	Env               string
	LogLevel          string
	ClientURL         string
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	MaxBodyBytes      int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
	StoreDriver       string
}

type AuthConfig struct {
	JWTSecret           string
	SessionExpiry       time.Duration
	BcryptCost          int
	MaxConcurrentHashes int64
	OTPExpiry           time.Duration
	ResetTokenExpiry    time.Duration
	CleanupInterval     time.Duration
	LoginBaseDelay      time.Duration
	LoginRandomDelay    time.Duration
	CookieDomain        string
	CookieSecure        bool
	CookieSameSite      string
}

type EmailConfig struct {
	Driver      string
	AWSRegion   string
	FromAddress string
}

// IsProduction reports whether the server runs with ENV=production
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	production := env == "production"
	clientURL := strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/")

	sessionExpiry, err := getEnvAsDayDuration("JWT_EXPIRES_IN", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}

	defaultSameSite := "lax"
	if production {
		defaultSameSite = "none"
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authcore"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Server: ServerConfig{
			Port:              getEnv("PORT", "7019"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			ClientURL:         clientURL,
			AllowedOrigins:    parseAllowedOrigins(env, clientURL),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
			MaxBodyBytes:      int64(getEnvAsInt("MAX_BODY_BYTES", 10*1024)),
			RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			TrustedProxies:    splitList(getEnv("TRUSTED_PROXIES", "")),
			StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			SessionExpiry:       sessionExpiry,
			BcryptCost:          getEnvAsInt("BCRYPT_COST", 11),
			MaxConcurrentHashes: int64(getEnvAsInt("MAX_CONCURRENT_HASHES", 0)),
			OTPExpiry:           getEnvAsDuration("OTP_EXPIRY", 24*time.Hour),
			ResetTokenExpiry:    getEnvAsDuration("RESET_TOKEN_EXPIRY", 10*time.Minute),
			CleanupInterval:     getEnvAsDuration("SECRET_CLEANUP_INTERVAL", 1*time.Hour),
			LoginBaseDelay:      getEnvAsDuration("LOGIN_BASE_DELAY", 250*time.Millisecond),
			LoginRandomDelay:    getEnvAsDuration("LOGIN_RANDOM_DELAY", 100*time.Millisecond),
			CookieDomain:        getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:        getEnvAsBool("COOKIE_SECURE", production),
			CookieSameSite:      strings.ToLower(getEnv("COOKIE_SAMESITE", defaultSameSite)),
		},
		Email: EmailConfig{
			Driver:      strings.ToLower(getEnv("EMAIL_DRIVER", EmailDriverLog)),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@localhost"),
		},
	}

	switch cfg.Server.StoreDriver {
	case StoreDriverPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
		if production {
			return nil, fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Server.StoreDriver)
	}

	switch cfg.Email.Driver {
	case EmailDriverSES, EmailDriverLog:
	default:
		return nil, fmt.Errorf("unknown EMAIL_DRIVER %q", cfg.Email.Driver)
	}

	if cfg.Auth.CookieSameSite == "none" && !cfg.Auth.CookieSecure {
		return nil, fmt.Errorf("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsDayDuration accepts Go durations plus a whole-day form such as "90d".
func getEnvAsDayDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal, nil
	}
	d, err := parseDayDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 90d or 720h (got %q)", key, value)
	}
	return d, nil
}

func parseDayDuration(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env, clientURL string) []string {
	origins := splitList(getEnv("ALLOWED_ORIGINS", ""))
	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	if env == "production" {
		return origins
	}

	// Development: allow localhost variants
	return append(origins,
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	)
}
