package oauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryMargin is how long before its expiry a cached access token
// stops being handed out.
const DefaultExpiryMargin = 60 * time.Second

// DecodeExpiry determines when an access token expires.
//
// JWT access tokens carry an exp claim, which wins. The token is parsed
// without signature verification: the provider issued it and the resource
// server verifies it, the broker only needs to know when to stop using it.
// Opaque tokens fall back to expires_in from the token response. A token
// with neither is a provider contract violation.
func DecodeExpiry(pair *TokenPair, now time.Time) (time.Time, error) {
	if pair == nil || pair.AccessToken == "" {
		return time.Time{}, fmt.Errorf("%w: access_token is missing", ErrProviderContract)
	}

	if exp, ok := jwtExpiry(pair.AccessToken); ok {
		return exp, nil
	}

	if pair.ExpiresIn > 0 {
		return now.Add(time.Duration(pair.ExpiresIn) * time.Second), nil
	}

	return time.Time{}, fmt.Errorf("%w: access token has neither an exp claim nor expires_in", ErrProviderContract)
}

func jwtExpiry(raw string) (time.Time, bool) {
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
