package oauth

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactedToken_Formatting(t *testing.T) {
	token := NewRedactedToken("super-secret-token-12345")

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"string verb", "%s", "[REDACTED]"},
		{"value verb", "%v", "[REDACTED]"},
		{"go syntax verb", "%#v", "oauth.RedactedToken{[REDACTED]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fmt.Sprintf(tt.format, token))
		})
	}

	assert.Equal(t, "super-secret-token-12345", token.Value())
}

func TestRedactedToken_IsEmptyAndEqual(t *testing.T) {
	assert.True(t, NewRedactedToken("").IsEmpty())
	assert.False(t, NewRedactedToken("value").IsEmpty())

	assert.True(t, NewRedactedToken("a").Equal(NewRedactedToken("a")))
	assert.False(t, NewRedactedToken("a").Equal(NewRedactedToken("b")))
}

func TestRedactedToken_Marshalling(t *testing.T) {
	token := NewRedactedToken("secret-value")

	data, err := json.Marshal(token)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	text, err := token.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))
}

func TestIntegration_NeverLeaksRefreshToken(t *testing.T) {
	integration := &Integration{
		UserID:          "user-1",
		IntegrationType: IntegrationOneDrive,
		RefreshToken:    NewRedactedToken("refresh-secret"),
		Status:          StatusActive,
	}

	data, err := json.Marshal(integration)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "refresh-secret")

	assert.NotContains(t, fmt.Sprintf("%+v", integration), "refresh-secret")
	assert.NotContains(t, fmt.Errorf("saving %v failed", *integration).Error(), "refresh-secret")
}
