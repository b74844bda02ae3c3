package oauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "client-123"
	testRedirectBase = "https://jarvis.example.com"
)

// newTestJWT returns a signed JWT access token expiring at exp.
func newTestJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "resource-user",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("provider-signing-key"))
	require.NoError(t, err)
	return signed
}

// fakeExchanger is a scriptable TokenExchanger that records its calls.
type fakeExchanger struct {
	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	refreshTokens []string

	exchangeFn func(ctx context.Context, code, redirectURI, verifier string) (*TokenPair, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*TokenPair, error)
}

func (f *fakeExchanger) Exchange(ctx context.Context, code, redirectURI, verifier string) (*TokenPair, error) {
	f.mu.Lock()
	f.exchangeCalls++
	fn := f.exchangeFn
	f.mu.Unlock()
	if fn == nil {
		return &TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}, nil
	}
	return fn(ctx, code, redirectURI, verifier)
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return &TokenPair{AccessToken: "access", ExpiresIn: 3600}, nil
	}
	return fn(ctx, refreshToken)
}

func (f *fakeExchanger) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeExchanger) RefreshTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

type testManager struct {
	*Manager
	pending      *MemoryPendingStore
	integrations *MemoryIntegrationStore
	cache        *MemoryTokenCache
	exchanger    TokenExchanger
}

func newTestManager(t *testing.T, exchanger TokenExchanger) *testManager {
	t.Helper()

	redirects, err := NewRedirectBuilder(RedirectConfig{
		ClientID:     testClientID,
		RedirectBase: testRedirectBase,
	})
	require.NoError(t, err)

	pending := NewMemoryPendingStore(DefaultPendingTTL)
	integrations := NewMemoryIntegrationStore()
	cache := NewMemoryTokenCache()

	m, err := NewManager(ManagerConfig{
		Pending:        pending,
		Integrations:   integrations,
		Cache:          cache,
		Exchanger:      exchanger,
		Redirects:      redirects,
		RefreshTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return &testManager{
		Manager:      m,
		pending:      pending,
		integrations: integrations,
		cache:        cache,
		exchanger:    exchanger,
	}
}

// seedIntegration stores an active integration holding refreshToken.
func (tm *testManager) seedIntegration(t *testing.T, userID, refreshToken string) {
	t.Helper()
	require.NoError(t, tm.integrations.Save(context.Background(), &Integration{
		UserID:          userID,
		IntegrationType: IntegrationOneDrive,
		AppID:           testClientID,
		RefreshToken:    NewRedactedToken(refreshToken),
		Status:          StatusActive,
	}))
}
