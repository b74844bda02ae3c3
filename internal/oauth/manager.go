package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"jarvis/pkg/logging"
	pkgoauth "jarvis/pkg/oauth"
)

// ManagerConfig wires the collaborators of a Manager.
type ManagerConfig struct {
	Pending      PendingStore
	Integrations IntegrationStore
	Cache        AccessTokenCache
	Exchanger    TokenExchanger
	Redirects    *RedirectBuilder

	// Locker is optional; without it refreshes are only collapsed within
	// this process.
	Locker  RefreshLocker
	Metrics *Metrics

	// AllowedRefererOrigins restricts where the browser may be sent after
	// the callback. Empty allows any absolute http(s) URL.
	AllowedRefererOrigins []string

	// ExpiryMargin defaults to DefaultExpiryMargin.
	ExpiryMargin time.Duration

	// RefreshTimeout bounds a whole refresh (lock, token endpoint, store
	// writes). Defaults to DefaultRequestTimeout.
	RefreshTimeout time.Duration
}

// Manager is the token lifecycle manager. It drives the authorization-code
// flow and hands out valid access tokens, refreshing each
// (user, integration type) at most once at a time.
type Manager struct {
	pending      PendingStore
	integrations IntegrationStore
	cache        AccessTokenCache
	exchanger    TokenExchanger
	redirects    *RedirectBuilder
	locker       RefreshLocker
	metrics      *Metrics

	allowedOrigins []string
	margin         time.Duration
	refreshTimeout time.Duration

	flights singleflight.Group
	now     func() time.Time
}

// NewManager validates cfg and creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	switch {
	case cfg.Pending == nil:
		return nil, fmt.Errorf("%w: pending authorization store is required", ErrConfig)
	case cfg.Integrations == nil:
		return nil, fmt.Errorf("%w: integration store is required", ErrConfig)
	case cfg.Cache == nil:
		return nil, fmt.Errorf("%w: access token cache is required", ErrConfig)
	case cfg.Exchanger == nil:
		return nil, fmt.Errorf("%w: token exchanger is required", ErrConfig)
	case cfg.Redirects == nil:
		return nil, fmt.Errorf("%w: redirect builder is required", ErrConfig)
	}

	m := &Manager{
		pending:        cfg.Pending,
		integrations:   cfg.Integrations,
		cache:          cfg.Cache,
		exchanger:      cfg.Exchanger,
		redirects:      cfg.Redirects,
		locker:         cfg.Locker,
		metrics:        cfg.Metrics,
		allowedOrigins: cfg.AllowedRefererOrigins,
		margin:         cfg.ExpiryMargin,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
	}
	if m.locker == nil {
		m.locker = noopLocker{}
	}
	if m.margin <= 0 {
		m.margin = DefaultExpiryMargin
	}
	if m.refreshTimeout <= 0 {
		m.refreshTimeout = DefaultRequestTimeout
	}
	return m, nil
}

// StartAuthorization creates a pending authorization for the user and
// returns the provider URL the browser must be sent to.
func (m *Manager) StartAuthorization(ctx context.Context, userID string, t IntegrationType, referer string) (authURL string, err error) {
	defer func() { m.metrics.authorization("started", err) }()

	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown integration type %q", ErrInvalidRequest, t)
	}
	if err := ValidateReferer(referer, m.allowedOrigins); err != nil {
		return "", err
	}

	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return "", fmt.Errorf("failed to generate PKCE: %w", err)
	}

	sessionID, err := m.pending.Put(ctx, &PendingAuthorization{
		UserID:          userID,
		IntegrationType: t,
		CodeVerifier:    pkce.CodeVerifier,
		CodeChallenge:   pkce.CodeChallenge,
		Referer:         referer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store pending authorization: %w", err)
	}

	logging.Info("OAuth", "Started %s authorization for user=%s session=%s",
		t, logging.TruncateID(userID), logging.TruncateID(sessionID))

	return m.redirects.AuthorizeURL(t, sessionID, pkce.CodeChallenge), nil
}

// CallbackParams are the query parameters the provider redirects back with.
type CallbackParams struct {
	SessionID        string
	Code             string
	Error            string
	ErrorDescription string
}

// CompleteAuthorization consumes the pending authorization named by the
// callback and redeems the code. On success the integration is stored as
// active and its access token is cached. The returned authorization carries
// the referer to send the browser back to.
//
// The pending authorization is consumed even when the provider reported an
// error or the exchange fails, so a callback can never be replayed.
func (m *Manager) CompleteAuthorization(ctx context.Context, params CallbackParams) (auth *PendingAuthorization, err error) {
	defer func() { m.metrics.authorization("completed", err) }()

	if params.SessionID == "" {
		return nil, ErrSessionNotFound
	}

	auth, err = m.pending.GetAndRemove(ctx, params.SessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to load pending authorization: %w", err)
		}
		logging.Warn("OAuth", "Callback for unknown or expired session=%s", logging.TruncateID(params.SessionID))
		return nil, err
	}

	if params.Error != "" {
		logging.Warn("OAuth", "Provider rejected %s authorization for user=%s: %s",
			auth.IntegrationType, logging.TruncateID(auth.UserID), params.Error)
		return auth, &AuthorizationError{Code: params.Error, Description: params.ErrorDescription}
	}
	if params.Code == "" {
		return auth, &AuthorizationError{Code: "invalid_request", Description: "authorization code is missing"}
	}

	if err := pkgoauth.ValidateVerifier(auth.CodeVerifier); err != nil {
		logging.Error("OAuth", err, "Pending authorization session=%s holds an unusable code verifier",
			logging.TruncateID(params.SessionID))
		return auth, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}

	pair, err := m.exchanger.Exchange(ctx, params.Code, m.redirects.CallbackURL(params.SessionID), auth.CodeVerifier)
	if err != nil {
		logging.Error("OAuth", err, "Code exchange failed for user=%s type=%s",
			logging.TruncateID(auth.UserID), auth.IntegrationType)
		return auth, err
	}

	now := m.now()
	integration := &Integration{
		UserID:          auth.UserID,
		IntegrationType: auth.IntegrationType,
		AppID:           m.redirects.ClientID(),
		RefreshToken:    NewRedactedToken(pair.RefreshToken),
		Status:          StatusActive,
		UpdatedAt:       now,
	}
	if err := m.integrations.Save(ctx, integration); err != nil {
		return auth, fmt.Errorf("failed to save integration: %w", err)
	}

	if expiresAt, err := DecodeExpiry(pair, now); err != nil {
		// The refresh token is stored; the next GetAccessToken refreshes.
		logging.Warn("OAuth", "Not caching access token for user=%s: %v", logging.TruncateID(auth.UserID), err)
	} else {
		m.storeInCache(ctx, &CachedAccessToken{
			UserID:          auth.UserID,
			IntegrationType: auth.IntegrationType,
			Token:           NewRedactedToken(pair.AccessToken),
			ExpiresAt:       expiresAt,
			CachedAt:        now,
		})
	}

	logging.Info("OAuth", "Connected %s for user=%s", auth.IntegrationType, logging.TruncateID(auth.UserID))
	return auth, nil
}

// GetAccessToken returns an access token for the integration that is valid
// for at least the expiry margin.
//
// Concurrent callers for the same key share one refresh; callers for other
// keys are not blocked. A caller whose ctx ends stops waiting, the refresh
// itself runs to completion so its result is not lost for the others.
// Errors match ErrRequiresReauth (user must authorize again), ErrTransient
// (retry later) or ErrIntegrationNotFound.
func (m *Manager) GetAccessToken(ctx context.Context, userID string, t IntegrationType) (string, error) {
	key := IntegrationKey{UserID: userID, Type: t}

	if tok := m.usableCached(ctx, key); tok != nil {
		m.metrics.cacheLookup(true)
		return tok.Token.Value(), nil
	}
	m.metrics.cacheLookup(false)

	ch := m.flights.DoChan(key.String(), func() (any, error) {
		return m.refresh(ctx, key)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*CachedAccessToken).Token.Value(), nil
	}
}

// ListIntegrations returns the user's integrations.
func (m *Manager) ListIntegrations(ctx context.Context, userID string) ([]*Integration, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return m.integrations.GetAll(ctx, userID)
}

// refresh runs once per key at a time inside the single flight. It is
// detached from the first caller's cancellation.
func (m *Manager) refresh(parent context.Context, key IntegrationKey) (*CachedAccessToken, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.refreshTimeout)
	defer cancel()

	unlock, err := m.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire refresh lock: %w", ErrTransient, err)
	}
	defer unlock()

	// Another flight, possibly in another process, may have just finished.
	if tok := m.usableCached(ctx, key); tok != nil {
		return tok, nil
	}

	integration, err := m.integrations.Get(ctx, key.UserID, key.Type)
	if err != nil {
		return nil, err
	}
	if integration.RequiresReauth() {
		return nil, fmt.Errorf("%w: %s", ErrRequiresReauth, integration.StatusReason)
	}

	oldRefresh := integration.RefreshToken.Value()
	start := m.now()
	pair, err := m.exchanger.Refresh(ctx, oldRefresh)
	m.metrics.refresh(err, m.now().Sub(start).Seconds())
	if err != nil {
		return nil, m.handleRefreshFailure(ctx, key, oldRefresh, err)
	}

	now := m.now()
	// Persist a rotated credential before anything can act on the new
	// access token. The old one is dead from here on. A re-authorization
	// that landed meanwhile holds the newer grant and wins.
	if pair.RefreshToken != "" && pair.RefreshToken != oldRefresh {
		changed, err := m.integrations.RotateRefreshToken(ctx, key.UserID, key.Type, oldRefresh, pair.RefreshToken)
		if err != nil {
			logging.Error("OAuth", err, "Failed to persist rotated refresh token for user=%s type=%s",
				logging.TruncateID(key.UserID), key.Type)
			return nil, fmt.Errorf("failed to persist rotated refresh token: %w", err)
		}
		if !changed {
			logging.Info("OAuth", "Integration %s for user=%s was re-authorized during refresh, dropping rotated token",
				key.Type, logging.TruncateID(key.UserID))
			return nil, fmt.Errorf("%w: integration was re-authorized during refresh", ErrTransient)
		}
	}

	expiresAt, err := DecodeExpiry(pair, now)
	if err != nil {
		logging.Error("OAuth", err, "Refreshed token for user=%s type=%s is unusable",
			logging.TruncateID(key.UserID), key.Type)
		return nil, err
	}

	tok := &CachedAccessToken{
		UserID:          key.UserID,
		IntegrationType: key.Type,
		Token:           NewRedactedToken(pair.AccessToken),
		ExpiresAt:       expiresAt,
		CachedAt:        now,
	}
	m.storeInCache(ctx, tok)

	logging.Info("OAuth", "Refreshed %s access token for user=%s (expires in %v, took %v)",
		key.Type, logging.TruncateID(key.UserID), expiresAt.Sub(now).Round(time.Second), now.Sub(start))
	return tok, nil
}

func (m *Manager) handleRefreshFailure(ctx context.Context, key IntegrationKey, failedRefresh string, err error) error {
	if !errors.Is(err, ErrRefreshInvalid) {
		logging.Warn("OAuth", "Refresh failed for user=%s type=%s, stored state untouched: %v",
			logging.TruncateID(key.UserID), key.Type, err)
		return err
	}

	reason := "refresh token rejected by provider"
	var te *TokenEndpointError
	if errors.As(err, &te) && te.Description != "" {
		reason = te.Code + ": " + te.Description
	}

	changed, markErr := m.integrations.MarkRequiresReauth(ctx, key.UserID, key.Type, failedRefresh, reason)
	switch {
	case markErr != nil:
		logging.Error("OAuth", markErr, "Failed to mark user=%s type=%s as requiring re-authentication",
			logging.TruncateID(key.UserID), key.Type)
	case changed:
		if delErr := m.cache.Delete(ctx, key); delErr != nil {
			logging.Warn("OAuth", "Failed to evict cached token for user=%s: %v", logging.TruncateID(key.UserID), delErr)
		}
		logging.Warn("OAuth", "Integration %s for user=%s requires re-authentication",
			key.Type, logging.TruncateID(key.UserID))
	default:
		// The stored credential is newer than the rejected one; a retry uses it.
		logging.Info("OAuth", "Integration %s for user=%s was re-authorized during a failed refresh",
			key.Type, logging.TruncateID(key.UserID))
		return fmt.Errorf("%w: integration was re-authorized during refresh", ErrTransient)
	}

	return fmt.Errorf("%w: %w", ErrRequiresReauth, err)
}

// usableCached returns the cached token for key if it outlives the margin.
// Cache read failures are logged and treated as a miss.
func (m *Manager) usableCached(ctx context.Context, key IntegrationKey) *CachedAccessToken {
	tok, err := m.cache.Get(ctx, key)
	if err != nil {
		logging.Warn("OAuth", "Access token cache read failed for user=%s: %v", logging.TruncateID(key.UserID), err)
		return nil
	}
	if !tok.UsableAt(m.now(), m.margin) {
		return nil
	}
	return tok
}

func (m *Manager) storeInCache(ctx context.Context, tok *CachedAccessToken) {
	if err := m.cache.Put(ctx, tok); err != nil {
		logging.Warn("OAuth", "Failed to cache access token for user=%s: %v", logging.TruncateID(tok.UserID), err)
	}
}
