package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jarvis/internal/oauth"
)

// cachedToken is the Redis payload. CachedAccessToken never serializes its
// token, so the raw value is carried explicitly.
type cachedToken struct {
	UserID          string                `json:"user_id"`
	IntegrationType oauth.IntegrationType `json:"integration_type"`
	Token           string                `json:"token"`
	ExpiresAt       time.Time             `json:"expires_at"`
	CachedAt        time.Time             `json:"cached_at"`
}

// TokenCache is an oauth.AccessTokenCache on Redis. Keys follow
// oauth.AccessKey and expire together with the token.
type TokenCache struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ oauth.AccessTokenCache = (*TokenCache)(nil)

// NewTokenCache creates a cache on client.
func NewTokenCache(client redis.UniversalClient) *TokenCache {
	return &TokenCache{client: client, now: time.Now}
}

// Get implements oauth.AccessTokenCache.
func (c *TokenCache) Get(ctx context.Context, key oauth.IntegrationKey) (*oauth.CachedAccessToken, error) {
	payload, err := c.client.Get(ctx, oauth.AccessKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cached token: %w", err)
	}

	var ct cachedToken
	if err := json.Unmarshal(payload, &ct); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	return &oauth.CachedAccessToken{
		UserID:          ct.UserID,
		IntegrationType: ct.IntegrationType,
		Token:           oauth.NewRedactedToken(ct.Token),
		ExpiresAt:       ct.ExpiresAt,
		CachedAt:        ct.CachedAt,
	}, nil
}

// Put implements oauth.AccessTokenCache. Tokens that are already expired
// are not written.
func (c *TokenCache) Put(ctx context.Context, token *oauth.CachedAccessToken) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(cachedToken{
		UserID:          token.UserID,
		IntegrationType: token.IntegrationType,
		Token:           token.Token.Value(),
		ExpiresAt:       token.ExpiresAt,
		CachedAt:        token.CachedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal cached token: %w", err)
	}

	if err := c.client.Set(ctx, oauth.AccessKey(token.Key()), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist cached token: %w", err)
	}
	return nil
}

// Delete implements oauth.AccessTokenCache.
func (c *TokenCache) Delete(ctx context.Context, key oauth.IntegrationKey) error {
	if err := c.client.Del(ctx, oauth.AccessKey(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete cached token: %w", err)
	}
	return nil
}
