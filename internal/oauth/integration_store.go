package oauth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// IntegrationStore durably holds the current refresh credential per
// (userID, integration type). Implementations must be safe for concurrent
// use.
type IntegrationStore interface {
	// Save upserts the integration. Last writer wins.
	Save(ctx context.Context, integration *Integration) error

	// Get returns ErrIntegrationNotFound when no record exists.
	Get(ctx context.Context, userID string, t IntegrationType) (*Integration, error)

	// GetAll returns every integration of a user, ordered by type.
	GetAll(ctx context.Context, userID string) ([]*Integration, error)

	// MarkRequiresReauth parks the integration, but only if it still holds
	// failedRefreshToken. It reports whether the record was changed; false
	// means a newer credential was stored in the meantime.
	MarkRequiresReauth(ctx context.Context, userID string, t IntegrationType, failedRefreshToken, reason string) (bool, error)

	// RotateRefreshToken replaces oldRefreshToken with newRefreshToken and
	// marks the integration active, but only if it still holds
	// oldRefreshToken. It reports whether the record was changed; false
	// means a newer credential was stored in the meantime.
	RotateRefreshToken(ctx context.Context, userID string, t IntegrationType, oldRefreshToken, newRefreshToken string) (bool, error)
}

// MemoryIntegrationStore is an in-process IntegrationStore.
type MemoryIntegrationStore struct {
	mu      sync.RWMutex
	records map[IntegrationKey]*Integration
	now     func() time.Time
}

// NewMemoryIntegrationStore creates an empty store.
func NewMemoryIntegrationStore() *MemoryIntegrationStore {
	return &MemoryIntegrationStore{
		records: make(map[IntegrationKey]*Integration),
		now:     time.Now,
	}
}

// Save implements IntegrationStore.
func (s *MemoryIntegrationStore) Save(_ context.Context, integration *Integration) error {
	stored := integration.Clone()
	if stored.Status == "" {
		stored.Status = StatusActive
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}

	s.mu.Lock()
	s.records[stored.Key()] = stored
	s.mu.Unlock()
	return nil
}

// Get implements IntegrationStore.
func (s *MemoryIntegrationStore) Get(_ context.Context, userID string, t IntegrationType) (*Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[IntegrationKey{UserID: userID, Type: t}]
	if !ok {
		return nil, ErrIntegrationNotFound
	}
	return rec.Clone(), nil
}

// GetAll implements IntegrationStore.
func (s *MemoryIntegrationStore) GetAll(_ context.Context, userID string) ([]*Integration, error) {
	s.mu.RLock()
	var out []*Integration
	for key, rec := range s.records {
		if key.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].IntegrationType < out[j].IntegrationType
	})
	return out, nil
}

// MarkRequiresReauth implements IntegrationStore.
func (s *MemoryIntegrationStore) MarkRequiresReauth(_ context.Context, userID string, t IntegrationType, failedRefreshToken, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[IntegrationKey{UserID: userID, Type: t}]
	if !ok {
		return false, ErrIntegrationNotFound
	}
	if rec.RefreshToken.Value() != failedRefreshToken {
		return false, nil
	}

	rec.Status = StatusRequiresReauth
	rec.StatusReason = reason
	rec.UpdatedAt = s.now()
	return true, nil
}

// RotateRefreshToken implements IntegrationStore.
func (s *MemoryIntegrationStore) RotateRefreshToken(_ context.Context, userID string, t IntegrationType, oldRefreshToken, newRefreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[IntegrationKey{UserID: userID, Type: t}]
	if !ok {
		return false, ErrIntegrationNotFound
	}
	if rec.RefreshToken.Value() != oldRefreshToken {
		return false, nil
	}

	rec.RefreshToken = NewRedactedToken(newRefreshToken)
	rec.Status = StatusActive
	rec.StatusReason = ""
	rec.UpdatedAt = s.now()
	return true, nil
}
