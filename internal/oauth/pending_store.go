package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jarvis/pkg/logging"
	pkgoauth "jarvis/pkg/oauth"
)

// DefaultPendingTTL bounds how long a user has to finish the provider login.
const DefaultPendingTTL = 5 * time.Minute

// sweepEvery is how many Puts pass between opportunistic sweeps of expired
// entries in the memory store.
const sweepEvery = 64

// PendingStore correlates an ephemeral session id with the state of an
// in-flight authorization.
//
// GetAndRemove is atomic: once one caller observes a hit for a session id,
// every other caller observes ErrSessionNotFound.
type PendingStore interface {
	// Put stores auth under a freshly generated session id, sets
	// auth.SessionID and auth.CreatedAt and returns the id.
	Put(ctx context.Context, auth *PendingAuthorization) (string, error)

	// GetAndRemove consumes the authorization. It returns ErrSessionNotFound
	// when the id is unknown, already consumed or older than the TTL.
	GetAndRemove(ctx context.Context, sessionID string) (*PendingAuthorization, error)
}

// MemoryPendingStore is a PendingStore for single-process deployments.
// Expiry is checked lazily on read; expired entries are also reclaimed
// every few writes so an abandoned flow does not pin memory.
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]*PendingAuthorization
	writes  int

	ttl time.Duration
	now func() time.Time
}

// NewMemoryPendingStore creates a store whose entries live for ttl.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryPendingStore{
		entries: make(map[string]*PendingAuthorization),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put implements PendingStore.
func (s *MemoryPendingStore) Put(_ context.Context, auth *PendingAuthorization) (string, error) {
	if auth == nil {
		return "", fmt.Errorf("pending authorization is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sessionID string
	for {
		id, err := pkgoauth.GenerateState()
		if err != nil {
			return "", err
		}
		if _, taken := s.entries[id]; !taken {
			sessionID = id
			break
		}
	}

	stored := *auth
	stored.SessionID = sessionID
	stored.CreatedAt = s.now()
	s.entries[sessionID] = &stored

	auth.SessionID = stored.SessionID
	auth.CreatedAt = stored.CreatedAt

	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweepLocked()
	}

	logging.Debug("OAuth", "Stored pending authorization session=%s user=%s",
		logging.TruncateID(sessionID), logging.TruncateID(auth.UserID))
	return sessionID, nil
}

// GetAndRemove implements PendingStore.
func (s *MemoryPendingStore) GetAndRemove(_ context.Context, sessionID string) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.entries, sessionID)

	if auth.Expired(s.now(), s.ttl) {
		logging.Debug("OAuth", "Pending authorization expired session=%s age=%v",
			logging.TruncateID(sessionID), s.now().Sub(auth.CreatedAt))
		return nil, ErrSessionNotFound
	}

	out := *auth
	return &out, nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryPendingStore) sweepLocked() {
	now := s.now()
	count := 0
	for id, auth := range s.entries {
		if auth.Expired(now, s.ttl) {
			delete(s.entries, id)
			count++
		}
	}
	if count > 0 {
		logging.Debug("OAuth", "Reclaimed %d expired pending authorizations", count)
	}
}
