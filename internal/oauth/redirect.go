package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	pkgoauth "jarvis/pkg/oauth"
)

// Default Microsoft identity platform endpoints.
const (
	DefaultAuthorizeEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	DefaultTokenEndpoint     = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	DefaultCallbackPath      = "/integrations/ExchangeCodeForToken"
)

// SessionIDParam is the query parameter carrying the session id on the
// callback URL.
const SessionIDParam = "sessionId"

// DefaultScopes returns the scopes requested for an integration type.
func DefaultScopes(t IntegrationType) []string {
	switch t {
	case IntegrationOneDrive:
		return []string{"Files.ReadWrite", "offline_access"}
	default:
		return []string{"offline_access"}
	}
}

// RedirectConfig holds what the redirect builder needs to know about the
// provider and this service's public address.
type RedirectConfig struct {
	ClientID          string
	AuthorizeEndpoint string

	// RedirectBase is the public base URL of this service, e.g.
	// https://jarvis.example.com.
	RedirectBase string
	CallbackPath string

	// Scopes overrides DefaultScopes for every integration type when set.
	Scopes []string
}

// RedirectBuilder constructs provider authorize URLs. It holds no
// per-request state and is safe for concurrent use.
type RedirectBuilder struct {
	clientID     string
	authEndpoint string
	callbackURL  string
	scopes       []string
}

// NewRedirectBuilder validates cfg and returns a builder. A missing client
// id or redirect base is a configuration error.
func NewRedirectBuilder(cfg RedirectConfig) (*RedirectBuilder, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: client id is not set", ErrConfig)
	}
	if strings.TrimSpace(cfg.RedirectBase) == "" {
		return nil, fmt.Errorf("%w: redirect base is not set", ErrConfig)
	}

	base, err := url.Parse(strings.TrimRight(cfg.RedirectBase, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: redirect base %q is not an absolute URL", ErrConfig, cfg.RedirectBase)
	}

	authEndpoint := cfg.AuthorizeEndpoint
	if authEndpoint == "" {
		authEndpoint = DefaultAuthorizeEndpoint
	}
	if _, err := url.Parse(authEndpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid authorize endpoint: %v", ErrConfig, err)
	}

	callbackPath := cfg.CallbackPath
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}
	if !strings.HasPrefix(callbackPath, "/") {
		callbackPath = "/" + callbackPath
	}

	return &RedirectBuilder{
		clientID:     cfg.ClientID,
		authEndpoint: authEndpoint,
		callbackURL:  base.String() + callbackPath,
		scopes:       cfg.Scopes,
	}, nil
}

// CallbackURL returns the redirect_uri for a session. The session id rides
// along as a query parameter so the provider echoes it back.
func (b *RedirectBuilder) CallbackURL(sessionID string) string {
	return b.callbackURL + "?" + url.Values{SessionIDParam: {sessionID}}.Encode()
}

// AuthorizeURL builds the provider authorize URL for a pending session.
func (b *RedirectBuilder) AuthorizeURL(t IntegrationType, sessionID, codeChallenge string) string {
	scopes := b.scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes(t)
	}

	cfg := oauth2.Config{
		ClientID:    b.clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: b.authEndpoint},
		RedirectURL: b.CallbackURL(sessionID),
		Scopes:      scopes,
	}

	// The session id doubles as the state parameter. The callback keys off
	// the sessionId on redirect_uri; state is only echoed for providers that
	// strip unknown redirect query parameters.
	return cfg.AuthCodeURL(sessionID,
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkgoauth.ChallengeMethodS256),
	)
}

// ClientID returns the configured OAuth client id.
func (b *RedirectBuilder) ClientID() string {
	return b.clientID
}
