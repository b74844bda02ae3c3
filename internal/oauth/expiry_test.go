package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	jwtExp := now.Add(75 * time.Minute)
	token := newTestJWT(t, jwtExp)

	t.Run("jwt exp claim wins over expires_in", func(t *testing.T) {
		got, err := DecodeExpiry(&TokenPair{AccessToken: token, ExpiresIn: 10}, now)
		require.NoError(t, err)
		assert.True(t, got.Equal(jwtExp), "got %v want %v", got, jwtExp)
	})

	t.Run("opaque token falls back to expires_in", func(t *testing.T) {
		got, err := DecodeExpiry(&TokenPair{AccessToken: "EwBwA8l6BAAU-opaque", ExpiresIn: 3600}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), got)
	})

	t.Run("jwt-shaped garbage falls back to expires_in", func(t *testing.T) {
		got, err := DecodeExpiry(&TokenPair{AccessToken: "a.b.c", ExpiresIn: 60}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Minute), got)
	})

	t.Run("no expiry information", func(t *testing.T) {
		_, err := DecodeExpiry(&TokenPair{AccessToken: "opaque"}, now)
		assert.ErrorIs(t, err, ErrProviderContract)
	})

	t.Run("missing access token", func(t *testing.T) {
		_, err := DecodeExpiry(&TokenPair{ExpiresIn: 3600}, now)
		assert.ErrorIs(t, err, ErrProviderContract)
	})
}

func TestCachedAccessToken_UsableAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresIn time.Duration
		want      bool
	}{
		{"well within lifetime", time.Hour, true},
		{"just over margin", DefaultExpiryMargin + time.Second, true},
		{"exactly at margin", DefaultExpiryMargin, false},
		{"inside margin", 30 * time.Second, false},
		{"already expired", -time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &CachedAccessToken{Token: NewRedactedToken("A"), ExpiresAt: now.Add(tt.expiresIn)}
			assert.Equal(t, tt.want, tok.UsableAt(now, DefaultExpiryMargin))
		})
	}

	var missing *CachedAccessToken
	assert.False(t, missing.UsableAt(now, DefaultExpiryMargin))
}
