package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openbasket/storefront/pkg/config"
)

// InspectToken decodes the marketplace JWT without verifying its signature
// (the upstream holds the key) and validates the claims the edge depends on:
// expiry within leeway, and issuer when one is configured.
func InspectToken(cfg config.SessionConfig, tokenString string, now time.Time) (*SessionClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("token is required")
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("unexpected token issuer %q", claims.Issuer)
	}

	if Expired(cfg, claims, now) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt.Time)
	}

	return claims, nil
}

// Expired reports whether the claims' expiry has passed, honoring leeway.
// A token with no expiry never expires from the edge's point of view.
func Expired(cfg config.SessionConfig, claims *SessionClaims, now time.Time) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return false
	}
	return now.After(claims.ExpiresAt.Time.Add(cfg.ExpiryLeeway))
}

// RemainingTTL returns how long the token stays valid, capped by config so a
// runaway upstream expiry cannot pin a cache entry forever.
func RemainingTTL(cfg config.SessionConfig, claims *SessionClaims, now time.Time) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return cfg.TokenTTLCap
	}
	ttl := claims.ExpiresAt.Time.Sub(now)
	if ttl <= 0 {
		return 0
	}
	if cfg.TokenTTLCap > 0 && ttl > cfg.TokenTTLCap {
		return cfg.TokenTTLCap
	}
	return ttl
}
