package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token: the user id plus the
// registered iat/exp/nbf/jti claims.
type SessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}
