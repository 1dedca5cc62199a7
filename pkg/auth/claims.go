package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the slice of the marketplace-issued JWT the edge cares
// about. The upstream signs and verifies its own tokens; we only read
// identity and expiry.
type SessionClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}
