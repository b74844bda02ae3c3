package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestTokenClient(t *testing.T, endpoint string) *TokenClient {
	t.Helper()
	c, err := NewTokenClient(TokenClientConfig{
		ClientID:      testClientID,
		Secret:        StaticSecret("client-secret"),
		TokenEndpoint: endpoint,
	})
	require.NoError(t, err)
	return c
}

func TestNewTokenClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenClientConfig
	}{
		{"missing client id", TokenClientConfig{Secret: StaticSecret("s"), TokenEndpoint: "https://idp/token"}},
		{"missing secret", TokenClientConfig{ClientID: "id", TokenEndpoint: "https://idp/token"}},
		{"empty secret", TokenClientConfig{ClientID: "id", Secret: StaticSecret(""), TokenEndpoint: "https://idp/token"}},
		{"missing endpoint", TokenClientConfig{ClientID: "id", Secret: StaticSecret("s")}},
		{"relative endpoint", TokenClientConfig{ClientID: "id", Secret: StaticSecret("s"), TokenEndpoint: "/token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenClient(tt.cfg)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestTokenClient_Exchange(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.Equal(t, "https://jarvis.example.com/cb?sessionId=s1", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))
		assert.Equal(t, testClientID, r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A","refresh_token":"R","token_type":"Bearer","expires_in":3600,"scope":"Files.ReadWrite"}`))
	})

	pair, err := newTestTokenClient(t, srv.URL).Exchange(context.Background(), "abc", "https://jarvis.example.com/cb?sessionId=s1", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "A", pair.AccessToken)
	assert.Equal(t, "R", pair.RefreshToken)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Equal(t, "Files.ReadWrite", pair.Scope)
}

func TestTokenClient_ExchangeRequiresRefreshToken(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"A","expires_in":3600}`))
	})

	_, err := newTestTokenClient(t, srv.URL).Exchange(context.Background(), "abc", "https://cb", "v")
	assert.ErrorIs(t, err, ErrProviderContract)
}

func TestTokenClient_Refresh(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "R1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Empty(t, r.PostForm.Get("code_verifier"))

		_, _ = w.Write([]byte(`{"access_token":"A2","refresh_token":"R2","expires_in":"3599"}`))
	})

	pair, err := newTestTokenClient(t, srv.URL).Refresh(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Equal(t, "R2", pair.RefreshToken)
	assert.Equal(t, int64(3599), pair.ExpiresIn)
}

func TestTokenClient_RefreshWithoutToken(t *testing.T) {
	c := newTestTokenClient(t, "https://idp.example.com/token")
	_, err := c.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestTokenClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		refresh  bool
		status   int
		body     string
		wantErr  error
		wantCode string
	}{
		{"invalid_grant on refresh", true, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"AADSTS70008: expired"}`, ErrRefreshInvalid, "invalid_grant"},
		{"invalid_grant on exchange", false, http.StatusBadRequest, `{"error":"invalid_grant"}`, ErrTokenExchange, "invalid_grant"},
		{"invalid_client on refresh", true, http.StatusUnauthorized, `{"error":"invalid_client"}`, ErrTokenExchange, "invalid_client"},
		{"rate limited", true, http.StatusTooManyRequests, `{"error":"slow_down"}`, ErrTransient, "slow_down"},
		{"server error", false, http.StatusInternalServerError, `oops`, ErrTransient, ""},
		{"bad gateway", true, http.StatusBadGateway, ``, ErrTransient, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newTestTokenClient(t, srv.URL)

			var err error
			if tt.refresh {
				_, err = c.Refresh(context.Background(), "R")
			} else {
				_, err = c.Exchange(context.Background(), "code", "https://cb", "v")
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var te *TokenEndpointError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, tt.wantCode, te.Code)
		})
	}
}

func TestTokenClient_ContractErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>login</html>`},
		{"missing access token", `{"refresh_token":"R","expires_in":10}`},
		{"wrong token type", `{"access_token":"A","token_type":"mac","expires_in":10}`},
		{"garbage expires_in", `{"access_token":"A","expires_in":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := newTestTokenClient(t, srv.URL).Refresh(context.Background(), "R")
			assert.ErrorIs(t, err, ErrProviderContract)
		})
	}
}

func TestTokenClient_TransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := newTestTokenClient(t, endpoint).Refresh(context.Background(), "R")
	assert.ErrorIs(t, err, ErrTransient)
	assert.True(t, IsRetryable(err))
}

func TestTokenClient_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	c, err := NewTokenClient(TokenClientConfig{
		ClientID:      testClientID,
		Secret:        StaticSecret("s"),
		TokenEndpoint: srv.URL,
		HTTPClient:    &http.Client{Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "R")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestTokenClient_UsesCurrentSecret(t *testing.T) {
	var seen []string
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = append(seen, r.PostForm.Get("client_secret"))
		_, _ = w.Write([]byte(`{"access_token":"A","expires_in":10}`))
	})

	secret := NewSwappableSecret("first")
	c, err := NewTokenClient(TokenClientConfig{ClientID: testClientID, Secret: secret, TokenEndpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "R")
	require.NoError(t, err)
	require.NoError(t, secret.Set("second"))
	_, err = c.Refresh(context.Background(), "R")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, seen)
	assert.Error(t, secret.Set(""))
}
