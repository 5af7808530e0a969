package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expired reports whether a persisted session can no longer be renewed. The
// refresh token decides when there is one; otherwise the access token does.
// Opaque tokens without a known expiry are assumed alive.
func expired(tokens Tokens, now time.Time) bool {
	if tokens.Refresh != "" {
		return pastExpiry(tokens.Refresh, tokens.RefreshExpires, now)
	}
	return pastExpiry(tokens.Access, tokens.AccessExpires, now)
}

func pastExpiry(token string, known time.Time, now time.Time) bool {
	if !known.IsZero() {
		return !now.Before(known)
	}
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key; the server stays the authority.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
