package oauth

import (
	"errors"
	"fmt"
)

// Error classes. Every error leaving this package matches exactly one of
// them via errors.Is.
var (
	// ErrConfig means client id/secret or endpoints are missing. It is
	// raised at startup, never per request.
	ErrConfig = errors.New("oauth: configuration error")

	// ErrSessionNotFound means the pending authorization never existed, was
	// already consumed or expired. The caller must restart the flow.
	ErrSessionNotFound = errors.New("oauth: authorization session expired or not found")

	// ErrProviderAuth means the provider reported an error on the callback.
	ErrProviderAuth = errors.New("oauth: provider rejected the authorization")

	// ErrTokenExchange means the token endpoint refused a request for a
	// reason that is neither transient nor an invalid refresh token.
	ErrTokenExchange = errors.New("oauth: token exchange failed")

	// ErrRefreshInvalid means the provider answered invalid_grant to a
	// refresh request.
	ErrRefreshInvalid = errors.New("oauth: refresh token rejected")

	// ErrRequiresReauth means the integration is parked until the user
	// authorizes again. It wraps ErrRefreshInvalid when raised by a refresh.
	ErrRequiresReauth = errors.New("oauth: re-authentication required")

	// ErrTransient covers timeouts, transport failures, 429 and 5xx. Stored
	// state is untouched and the caller may retry.
	ErrTransient = errors.New("oauth: transient provider failure")

	// ErrProviderContract means the token response did not have the
	// expected shape.
	ErrProviderContract = errors.New("oauth: unexpected token response")

	// ErrIntegrationNotFound means the user never connected the integration.
	ErrIntegrationNotFound = errors.New("oauth: integration not found")

	// ErrInvalidRequest means caller input such as the referer or the
	// integration type was rejected before any state was created.
	ErrInvalidRequest = errors.New("oauth: invalid request")
)

// AuthorizationError carries the error a provider returned on the callback.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// Unwrap classifies the error as ErrProviderAuth.
func (e *AuthorizationError) Unwrap() error {
	return ErrProviderAuth
}

// TokenEndpointError is a non-success answer from the token endpoint.
type TokenEndpointError struct {
	GrantType   string
	StatusCode  int
	Code        string
	Description string

	class error
}

func (e *TokenEndpointError) Error() string {
	msg := fmt.Sprintf("token endpoint returned status %d for %s grant", e.StatusCode, e.GrantType)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	return msg
}

// Unwrap returns the error class (ErrTransient, ErrRefreshInvalid or
// ErrTokenExchange).
func (e *TokenEndpointError) Unwrap() error {
	return e.class
}

// IsRetryable reports whether err is a transient failure the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// RequiresReauth reports whether the caller must send the user through a new
// authorization flow.
func RequiresReauth(err error) bool {
	return errors.Is(err, ErrRequiresReauth) || errors.Is(err, ErrRefreshInvalid)
}
