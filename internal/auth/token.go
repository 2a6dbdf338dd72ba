package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionExpiry is the lifetime of a session token and its cookie.
const DefaultSessionExpiry = 90 * 24 * time.Hour

// ErrInvalidToken is returned for tokens with a bad signature, unexpected
// algorithm, malformed claims, or an expired lifetime.
var ErrInvalidToken = errors.New("invalid session token")

// TokenManager issues and verifies HS256-signed session tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	if expiry <= 0 {
		expiry = DefaultSessionExpiry
	}
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// SetClock overrides the time source used for issuing and validating tokens.
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// Expiry returns the session lifetime.
func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

// Issue creates a session token for userID.
func (tm *TokenManager) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("cannot issue session token without user id")
	}

	now := tm.now()
	claims := &models.SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a session token and returns its claims.
func (tm *TokenManager) Validate(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing id or iat", ErrInvalidToken)
	}

	return claims, nil
}
