package oauth

import (
	"fmt"
	"strings"
	"time"
)

// IntegrationType identifies the third-party resource provider an
// integration grants access to.
type IntegrationType string

const (
	// IntegrationOneDrive is Microsoft OneDrive via the Microsoft identity platform.
	IntegrationOneDrive IntegrationType = "OneDrive"
)

// knownIntegrationTypes lists every IntegrationType the broker accepts.
var knownIntegrationTypes = []IntegrationType{IntegrationOneDrive}

// ParseIntegrationType resolves a case-insensitive name. An empty string
// selects OneDrive, the only provider wired today.
func ParseIntegrationType(s string) (IntegrationType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return IntegrationOneDrive, nil
	}
	for _, t := range knownIntegrationTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown integration type %q", s)
}

// Valid reports whether t is a known integration type.
func (t IntegrationType) Valid() bool {
	for _, known := range knownIntegrationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IntegrationStatus is the durable part of the per-key token state machine.
type IntegrationStatus string

const (
	// StatusActive means the stored refresh token is believed usable.
	StatusActive IntegrationStatus = "active"

	// StatusRequiresReauth is terminal until a new authorization-code flow
	// completes. It is only entered when the provider rejects the refresh
	// token with invalid_grant.
	StatusRequiresReauth IntegrationStatus = "requires_reauth"
)

// IntegrationKey identifies an integration and its cached access token.
type IntegrationKey struct {
	UserID string
	Type   IntegrationType
}

// String renders the key for logs and single-flight grouping.
func (k IntegrationKey) String() string {
	return k.UserID + "/" + string(k.Type)
}

// PendingAuthorization correlates an in-flight authorization-code flow with
// the user that started it. It is consumed exactly once by the callback.
type PendingAuthorization struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	IntegrationType IntegrationType `json:"integration_type"`

	// CodeVerifier never leaves the server until the code exchange.
	CodeVerifier  string `json:"code_verifier"`
	CodeChallenge string `json:"code_challenge"`

	// Referer is where the browser is sent once the flow completes.
	Referer   string    `json:"referer"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the authorization is older than ttl at now.
func (p *PendingAuthorization) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(p.CreatedAt.Add(ttl))
}

// Integration is the durable record of a user's connection to a provider.
type Integration struct {
	UserID          string
	IntegrationType IntegrationType

	// AppID is the OAuth client id the refresh token was issued to.
	AppID string

	// RefreshToken is the most recently issued refresh credential.
	RefreshToken RedactedToken

	Status       IntegrationStatus
	StatusReason string
	UpdatedAt    time.Time
}

// Key returns the store key of the integration.
func (i *Integration) Key() IntegrationKey {
	return IntegrationKey{UserID: i.UserID, Type: i.IntegrationType}
}

// RequiresReauth reports whether the integration is parked until the user
// authorizes again.
func (i *Integration) RequiresReauth() bool {
	return i.Status == StatusRequiresReauth
}

// Clone returns a copy that can be handed out without sharing state.
func (i *Integration) Clone() *Integration {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// CachedAccessToken is a short-lived access token kept in the cache.
type CachedAccessToken struct {
	UserID          string          `json:"user_id"`
	IntegrationType IntegrationType `json:"integration_type"`
	Token           RedactedToken   `json:"-"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CachedAt        time.Time       `json:"cached_at"`
}

// Key returns the cache key of the token.
func (c *CachedAccessToken) Key() IntegrationKey {
	return IntegrationKey{UserID: c.UserID, Type: c.IntegrationType}
}

// UsableAt reports whether the token expires strictly more than margin
// after now.
func (c *CachedAccessToken) UsableAt(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token.IsEmpty() {
		return false
	}
	return c.ExpiresAt.After(now.Add(margin))
}

// TokenPair is the typed result of a token endpoint call. It is split into
// Integration.RefreshToken and CachedAccessToken.Token immediately and never
// stored as is.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string

	// ExpiresIn is the access token lifetime in seconds as reported by the
	// provider, zero when absent.
	ExpiresIn int64
}
