package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jarvis/pkg/logging"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	// DefaultRequestTimeout bounds a single token endpoint round trip.
	DefaultRequestTimeout = 30 * time.Second

	// maxTokenResponseBytes caps how much of a token response is read.
	maxTokenResponseBytes = 1 << 20
)

// TokenExchanger turns an authorization code or a refresh token into a
// token pair. Errors are classified into the package error taxonomy.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// ClientSecretProvider returns the current client secret. Implementations
// must be safe for concurrent use.
type ClientSecretProvider interface {
	ClientSecret() string
}

// StaticSecret is a ClientSecretProvider for a secret that never changes.
type StaticSecret string

// ClientSecret implements ClientSecretProvider.
func (s StaticSecret) ClientSecret() string {
	return string(s)
}

// TokenClientConfig configures a TokenClient.
type TokenClientConfig struct {
	ClientID      string
	Secret        ClientSecretProvider
	TokenEndpoint string

	// HTTPClient defaults to a client with DefaultRequestTimeout.
	HTTPClient *http.Client
}

// TokenClient talks to the provider's token endpoint.
type TokenClient struct {
	clientID      string
	secret        ClientSecretProvider
	tokenEndpoint string
	httpClient    *http.Client
}

// NewTokenClient validates cfg and returns a client.
func NewTokenClient(cfg TokenClientConfig) (*TokenClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is not set", ErrConfig)
	}
	if cfg.Secret == nil || cfg.Secret.ClientSecret() == "" {
		return nil, fmt.Errorf("%w: client secret is not set", ErrConfig)
	}
	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: token endpoint is not set", ErrConfig)
	}
	if u, err := url.Parse(cfg.TokenEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: token endpoint %q is not an absolute URL", ErrConfig, cfg.TokenEndpoint)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &TokenClient{
		clientID:      cfg.ClientID,
		secret:        cfg.Secret,
		tokenEndpoint: cfg.TokenEndpoint,
		httpClient:    httpClient,
	}, nil
}

// Exchange redeems an authorization code.
func (c *TokenClient) Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", grantAuthorizationCode)
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("code_verifier", codeVerifier)

	pair, err := c.post(ctx, grantAuthorizationCode, data)
	if err != nil {
		return nil, err
	}
	if pair.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token missing from code exchange (is offline_access requested?)", ErrProviderContract)
	}

	logging.Debug("OAuth", "Exchanged authorization code (expires_in=%d)", pair.ExpiresIn)
	return pair, nil
}

// Refresh redeems a refresh token. The returned pair's RefreshToken is empty
// when the provider did not rotate it.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", ErrRefreshInvalid)
	}

	data := url.Values{}
	data.Set("grant_type", grantRefreshToken)
	data.Set("refresh_token", refreshToken)

	pair, err := c.post(ctx, grantRefreshToken, data)
	if err != nil {
		return nil, err
	}

	logging.Debug("OAuth", "Refreshed access token (expires_in=%d, rotated=%t)",
		pair.ExpiresIn, pair.RefreshToken != "")
	return pair, nil
}

// tokenResponse is the union of the success and error bodies of RFC 6749
// section 5.
type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	Scope        string          `json:"scope"`
	ExpiresIn    json.RawMessage `json:"expires_in"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *TokenClient) post(ctx context.Context, grantType string, data url.Values) (*TokenPair, error) {
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.secret.ClientSecret())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request failed: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %w", ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyTokenError(grantType, resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		logging.Warn("OAuth", "Token endpoint returned a body that is not a token response (grant=%s)", grantType)
		return nil, fmt.Errorf("%w: %w", ErrProviderContract, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token missing from token response", ErrProviderContract)
	}
	if tr.TokenType != "" && !strings.EqualFold(tr.TokenType, "bearer") {
		return nil, fmt.Errorf("%w: unsupported token_type %q", ErrProviderContract, tr.TokenType)
	}

	expiresIn, err := parseExpiresIn(tr.ExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderContract, err)
	}

	return &TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		ExpiresIn:    expiresIn,
	}, nil
}

// parseExpiresIn accepts both the numeric form and the quoted form some
// Microsoft endpoints still emit.
func parseExpiresIn(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expires_in is neither a number nor a string")
	}
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return 0, fmt.Errorf("expires_in %q is not a number", s)
	}
	return n, nil
}

// classifyTokenError maps a non-200 answer onto the error taxonomy:
// 429 and 5xx are transient, invalid_grant on a refresh invalidates the
// credential, anything else is a failed exchange.
func classifyTokenError(grantType string, status int, body []byte) error {
	var tr tokenResponse
	_ = json.Unmarshal(body, &tr)

	e := &TokenEndpointError{
		GrantType:   grantType,
		StatusCode:  status,
		Code:        tr.Error,
		Description: tr.ErrorDescription,
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		e.class = ErrTransient
	case grantType == grantRefreshToken && tr.Error == "invalid_grant":
		e.class = ErrRefreshInvalid
	default:
		e.class = ErrTokenExchange
	}

	// The description can echo request details, keep it at debug.
	logging.Debug("OAuth", "Token endpoint error: grant=%s status=%d error=%s description=%s",
		grantType, status, tr.Error, tr.ErrorDescription)
	return e
}

// SwappableSecret is a ClientSecretProvider whose value can be replaced at
// runtime, e.g. when a mounted secret file is rotated.
type SwappableSecret struct {
	mu    sync.RWMutex
	value string
}

// NewSwappableSecret returns a provider holding initial.
func NewSwappableSecret(initial string) *SwappableSecret {
	return &SwappableSecret{value: initial}
}

// ClientSecret implements ClientSecretProvider.
func (s *SwappableSecret) ClientSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the secret. Empty values are rejected.
func (s *SwappableSecret) Set(value string) error {
	if value == "" {
		return errors.New("client secret must not be empty")
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}
