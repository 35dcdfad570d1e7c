package authapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiresAt reads the exp claim from a session token without verifying
// its signature. The backend signs its tokens; the client only needs the
// expiry to decide whether a round-trip is worth making. Returns false for
// opaque (non-JWT) tokens or tokens without an exp claim.
func TokenExpiresAt(token string) (time.Time, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpired reports whether token is a JWT whose exp claim is in the past.
// Opaque tokens are never considered locally expired; the backend decides.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiresAt(token)
	if !ok {
		return false
	}
	return now.After(exp)
}
