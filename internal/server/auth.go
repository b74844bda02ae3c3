package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the calling user of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// JWTAuthenticator verifies HS256 bearer tokens. The user id is the sub claim.
type JWTAuthenticator struct {
	key    []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a verifier for tokens signed with signingKey.
// Issuer and audience are checked only when non-empty.
func NewJWTAuthenticator(signingKey, issuer, audience string) (*JWTAuthenticator, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("jwt signing key is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTAuthenticator{
		key:    []byte(signingKey),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HeaderAuthenticator trusts a header set by an authenticating proxy.
type HeaderAuthenticator struct {
	Header string
}

// Authenticate implements Authenticator.
func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(a.Header))
	if userID == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthenticated, a.Header)
	}
	return userID, nil
}

type contextKey string

const userIDKey contextKey = "user_id"

// ContextWithUserID stores the authenticated user id.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user id stored by the authentication
// middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// UserFromRequest adapts UserIDFromContext to oauth.UserResolver.
func UserFromRequest(r *http.Request) (string, bool) {
	return UserIDFromContext(r.Context())
}

// requireUser rejects unauthenticated requests with 401.
func requireUser(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="jarvis"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}
