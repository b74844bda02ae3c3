// Package kubernetes stores integrations as Kubernetes Secrets, one Secret
// per (user, integration type).
package kubernetes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
)

const (
	// LabelManagedBy marks Secrets owned by this store.
	LabelManagedBy = "app.kubernetes.io/managed-by"
	managedByValue = "jarvis"

	// LabelUserHash lets GetAll select a user's Secrets without putting the
	// raw user id in a label.
	LabelUserHash = "jarvis.io/user-hash"

	// LabelIntegrationType carries the lower-cased integration type.
	LabelIntegrationType = "jarvis.io/integration-type"

	secretNamePrefix = "jarvis-integration-"
)

// Secret data keys.
const (
	keyUserID          = "user-id"
	keyIntegrationType = "integration-type"
	keyAppID           = "app-id"
	keyRefreshToken    = "refresh-token"
	keyStatus          = "status"
	keyStatusReason    = "status-reason"
	keyUpdatedAt       = "updated-at"
)

// Store is an oauth.IntegrationStore backed by Secrets in one namespace.
// Concurrent writers are serialised by resourceVersion conflicts.
type Store struct {
	client    client.Client
	namespace string
	now       func() time.Time
}

var _ oauth.IntegrationStore = (*Store)(nil)

// NewClient creates a controller-runtime client that knows core types.
func NewClient(config *rest.Config) (client.Client, error) {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return k8sClient, nil
}

// NewStore creates a store writing to namespace.
func NewStore(k8sClient client.Client, namespace string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	return &Store{client: k8sClient, namespace: namespace, now: time.Now}
}

// Save implements oauth.IntegrationStore.
func (s *Store) Save(ctx context.Context, i *oauth.Integration) error {
	stored := i.Clone()
	if stored.Status == "" {
		stored.Status = oauth.StatusActive
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		secret := &corev1.Secret{}
		err := s.client.Get(ctx, s.objectKey(stored.UserID, stored.IntegrationType), secret)
		switch {
		case apierrors.IsNotFound(err):
			secret = s.newSecret(stored)
			if err := s.client.Create(ctx, secret); err != nil {
				if apierrors.IsAlreadyExists(err) {
					// Lost a create race; retry as an update.
					return apierrors.NewConflict(corev1.Resource("secrets"), secret.Name, err)
				}
				return err
			}
			return nil
		case err != nil:
			return err
		}

		secret.Data = encode(stored)
		return s.client.Update(ctx, secret)
	})
	if err != nil {
		return fmt.Errorf("save integration secret: %w", err)
	}

	logging.Debug("Kubernetes", "Saved integration %s for user=%s", stored.IntegrationType, logging.TruncateID(stored.UserID))
	return nil
}

// Get implements oauth.IntegrationStore.
func (s *Store) Get(ctx context.Context, userID string, t oauth.IntegrationType) (*oauth.Integration, error) {
	secret := &corev1.Secret{}
	if err := s.client.Get(ctx, s.objectKey(userID, t), secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, oauth.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("get integration secret: %w", err)
	}
	return decode(secret)
}

// GetAll implements oauth.IntegrationStore.
func (s *Store) GetAll(ctx context.Context, userID string) ([]*oauth.Integration, error) {
	list := &corev1.SecretList{}
	err := s.client.List(ctx, list,
		client.InNamespace(s.namespace),
		client.MatchingLabels{
			LabelManagedBy: managedByValue,
			LabelUserHash:  userHash(userID),
		})
	if err != nil {
		return nil, fmt.Errorf("list integration secrets: %w", err)
	}

	var out []*oauth.Integration
	for idx := range list.Items {
		i, err := decode(&list.Items[idx])
		if err != nil {
			logging.Warn("Kubernetes", "Skipping malformed integration secret %s: %v", list.Items[idx].Name, err)
			continue
		}
		if i.UserID != userID {
			continue
		}
		out = append(out, i)
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].IntegrationType < out[b].IntegrationType
	})
	return out, nil
}

// MarkRequiresReauth implements oauth.IntegrationStore.
func (s *Store) MarkRequiresReauth(ctx context.Context, userID string, t oauth.IntegrationType, failedRefreshToken, reason string) (bool, error) {
	changed, err := s.updateIfHolding(ctx, userID, t, failedRefreshToken, func(data map[string][]byte) {
		data[keyStatus] = []byte(oauth.StatusRequiresReauth)
		data[keyStatusReason] = []byte(reason)
	})
	if err != nil && !errors.Is(err, oauth.ErrIntegrationNotFound) {
		return false, fmt.Errorf("mark integration secret: %w", err)
	}
	return changed, err
}

// RotateRefreshToken implements oauth.IntegrationStore.
func (s *Store) RotateRefreshToken(ctx context.Context, userID string, t oauth.IntegrationType, oldRefreshToken, newRefreshToken string) (bool, error) {
	changed, err := s.updateIfHolding(ctx, userID, t, oldRefreshToken, func(data map[string][]byte) {
		data[keyRefreshToken] = []byte(newRefreshToken)
		data[keyStatus] = []byte(oauth.StatusActive)
		data[keyStatusReason] = []byte{}
	})
	if err != nil && !errors.Is(err, oauth.ErrIntegrationNotFound) {
		return false, fmt.Errorf("rotate refresh token secret: %w", err)
	}
	return changed, err
}

// updateIfHolding applies mutate to the Secret only while it still holds
// refreshToken. Conflicting writers are retried against the fresh object.
func (s *Store) updateIfHolding(ctx context.Context, userID string, t oauth.IntegrationType, refreshToken string, mutate func(map[string][]byte)) (bool, error) {
	changed := false
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		changed = false

		secret := &corev1.Secret{}
		if err := s.client.Get(ctx, s.objectKey(userID, t), secret); err != nil {
			return err
		}
		if string(secret.Data[keyRefreshToken]) != refreshToken {
			return nil
		}

		mutate(secret.Data)
		secret.Data[keyUpdatedAt] = []byte(s.now().UTC().Format(time.RFC3339Nano))
		if err := s.client.Update(ctx, secret); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, oauth.ErrIntegrationNotFound
		}
		return false, err
	}
	return changed, nil
}

func (s *Store) objectKey(userID string, t oauth.IntegrationType) client.ObjectKey {
	return client.ObjectKey{Namespace: s.namespace, Name: SecretName(userID, t)}
}

func (s *Store) newSecret(i *oauth.Integration) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      SecretName(i.UserID, i.IntegrationType),
			Namespace: s.namespace,
			Labels: map[string]string{
				LabelManagedBy:       managedByValue,
				LabelUserHash:        userHash(i.UserID),
				LabelIntegrationType: strings.ToLower(string(i.IntegrationType)),
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: encode(i),
	}
}

// SecretName derives a DNS-safe, stable Secret name for a key. User ids are
// arbitrary strings, so they are hashed.
func SecretName(userID string, t oauth.IntegrationType) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + string(t)))
	return secretNamePrefix + hex.EncodeToString(sum[:16])
}

func userHash(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:20])
}

func encode(i *oauth.Integration) map[string][]byte {
	return map[string][]byte{
		keyUserID:          []byte(i.UserID),
		keyIntegrationType: []byte(i.IntegrationType),
		keyAppID:           []byte(i.AppID),
		keyRefreshToken:    []byte(i.RefreshToken.Value()),
		keyStatus:          []byte(i.Status),
		keyStatusReason:    []byte(i.StatusReason),
		keyUpdatedAt:       []byte(i.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
}

func decode(secret *corev1.Secret) (*oauth.Integration, error) {
	userID := string(secret.Data[keyUserID])
	if userID == "" {
		return nil, fmt.Errorf("secret %s/%s missing required key '%s'", secret.Namespace, secret.Name, keyUserID)
	}

	i := &oauth.Integration{
		UserID:          userID,
		IntegrationType: oauth.IntegrationType(secret.Data[keyIntegrationType]),
		AppID:           string(secret.Data[keyAppID]),
		RefreshToken:    oauth.NewRedactedToken(string(secret.Data[keyRefreshToken])),
		Status:          oauth.IntegrationStatus(secret.Data[keyStatus]),
		StatusReason:    string(secret.Data[keyStatusReason]),
	}
	if i.Status == "" {
		i.Status = oauth.StatusActive
	}
	if raw := string(secret.Data[keyUpdatedAt]); raw != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("secret %s/%s has invalid '%s': %w", secret.Namespace, secret.Name, keyUpdatedAt, err)
		}
		i.UpdatedAt = updatedAt
	}
	return i, nil
}
