package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
	pkgoauth "jarvis/pkg/oauth"
)

const pendingPrefix = "pending-auth:"

// maxIDAttempts bounds session id regeneration on collision.
const maxIDAttempts = 5

// PendingStore is an oauth.PendingStore on Redis. Writes use SET NX EX so
// the TTL is enforced by Redis, reads use GETDEL so consumption is atomic
// across replicas.
type PendingStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

var _ oauth.PendingStore = (*PendingStore)(nil)

// NewPendingStore creates a store whose entries live for ttl.
func NewPendingStore(client redis.UniversalClient, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = oauth.DefaultPendingTTL
	}
	return &PendingStore{client: client, ttl: ttl, now: time.Now}
}

// Put implements oauth.PendingStore.
func (s *PendingStore) Put(ctx context.Context, auth *oauth.PendingAuthorization) (string, error) {
	if auth == nil {
		return "", errors.New("pending authorization is nil")
	}

	stored := *auth
	stored.CreatedAt = s.now()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := pkgoauth.GenerateState()
		if err != nil {
			return "", err
		}
		stored.SessionID = id

		payload, err := json.Marshal(&stored)
		if err != nil {
			return "", fmt.Errorf("marshal pending authorization: %w", err)
		}

		ok, err := s.client.SetNX(ctx, pendingPrefix+id, payload, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("persist pending authorization: %w", err)
		}
		if !ok {
			continue
		}

		auth.SessionID = stored.SessionID
		auth.CreatedAt = stored.CreatedAt
		logging.Debug("Redis", "Stored pending authorization session=%s", logging.TruncateID(id))
		return id, nil
	}
	return "", fmt.Errorf("could not allocate a unique session id after %d attempts", maxIDAttempts)
}

// GetAndRemove implements oauth.PendingStore.
func (s *PendingStore) GetAndRemove(ctx context.Context, sessionID string) (*oauth.PendingAuthorization, error) {
	if sessionID == "" {
		return nil, oauth.ErrSessionNotFound
	}

	payload, err := s.client.GetDel(ctx, pendingPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, oauth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load pending authorization: %w", err)
	}

	var auth oauth.PendingAuthorization
	if err := json.Unmarshal(payload, &auth); err != nil {
		return nil, fmt.Errorf("decode pending authorization: %w", err)
	}

	// Redis expiry has second granularity; hold the exact TTL here too.
	if auth.Expired(s.now(), s.ttl) {
		return nil, oauth.ErrSessionNotFound
	}
	return &auth, nil
}
