package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/authcore/pkg/http"
	"github.com/go-chi/httprate"
)

// MsgTooManyRequests is returned once a client exhausts its window
const MsgTooManyRequests = "Too many requests from this IP, please try again later."

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	IPConfig *pkghttp.IPConfig // Forwarding headers are trusted only from these proxies
}

// DefaultAPIRateLimit returns the default limit for /api routes (100 requests per 15 minutes)
func DefaultAPIRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 100,
		Window:   15 * time.Minute,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.Requests <= 0 || config.Window <= 0 {
		defaults := DefaultAPIRateLimit()
		config.Requests, config.Window = defaults.Requests, defaults.Window
	}
	ipConfig := config.IPConfig
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, MsgTooManyRequests)
		}),
	)
}
