package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
)

const lockPrefix = "refresh-lock:"

const (
	// DefaultLockTTL caps how long a crashed holder can block a key.
	DefaultLockTTL = 30 * time.Second

	// lockTTLMargin keeps the lock alive past the refresh deadline so the
	// holder's store writes land before anyone else may start.
	lockTTLMargin = 10 * time.Second

	defaultRetryInterval = 50 * time.Millisecond
)

// LockTTLFor returns the TTL for locks guarding refreshes bounded by
// refreshTimeout. A lock must never expire while its holder may still be
// redeeming the refresh token, or a second replica would redeem it too.
func LockTTLFor(refreshTimeout time.Duration) time.Duration {
	if refreshTimeout <= 0 {
		refreshTimeout = oauth.DefaultRequestTimeout
	}
	return max(DefaultLockTTL, refreshTimeout+lockTTLMargin)
}

// releaseScript deletes the lock only if it is still ours.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is an oauth.RefreshLocker on Redis using SET NX PX with a random
// owner token.
type Locker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	retryInterval time.Duration
}

var _ oauth.RefreshLocker = (*Locker)(nil)

// NewLocker creates a locker whose locks expire after ttl.
func NewLocker(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{client: client, ttl: ttl, retryInterval: defaultRetryInterval}
}

// Lock implements oauth.RefreshLocker.
func (l *Locker) Lock(ctx context.Context, key oauth.IntegrationKey) (func(), error) {
	name := lockPrefix + oauth.AccessKey(key)
	owner := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, name, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire refresh lock: %w", err)
		}
		if ok {
			return func() { l.release(name, owner) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(name, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{name}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logging.Warn("Redis", "Failed to release refresh lock %s: %v", name, err)
	}
}
