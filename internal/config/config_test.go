package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/oauth"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range stringOverrides {
		t.Setenv(o.name, "")
	}
	t.Setenv("JARVIS_ALLOWED_REFERER_ORIGINS", "")
	t.Setenv("JARVIS_REDIS_DB", "")
}

func validConfig() JarvisConfig {
	c := GetDefaultConfig()
	c.OAuth.ClientID = "client-1"
	c.OAuth.ClientSecret = "s3cret"
	c.OAuth.RedirectBase = "https://jarvis.example.com"
	c.Auth.SigningKey = "signing-key"
	return c
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddress, cfg.Server.ListenAddress)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, oauth.DefaultTokenEndpoint, cfg.OAuth.TokenEndpoint)
	assert.Equal(t, oauth.DefaultPendingTTL, cfg.OAuth.PendingTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlContent := `
server:
  listenAddress: ":9090"
oauth:
  clientId: from-file
  clientSecret: file-secret
  redirectBase: https://jarvis.example.com
  pendingTtl: 2m
  allowedRefererOrigins:
    - https://app.example.com
storage:
  backend: postgres
  postgres:
    databaseUrl: postgres://localhost/jarvis
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(yamlContent), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.Equal(t, "from-file", cfg.OAuth.ClientID)
	assert.Equal(t, 2*time.Minute, cfg.OAuth.PendingTTL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.OAuth.AllowedRefererOrigins)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	// Unset fields keep defaults.
	assert.Equal(t, oauth.DefaultCallbackPath, cfg.OAuth.CallbackPath)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("oauth:\n  clientId: from-file\n"), 0o600))

	t.Setenv("CLIENT_ID", "from-env")
	t.Setenv("CLIENT_SECRET", "env-secret")
	t.Setenv("TOKEN_ENDPOINT", "https://login.example.com/token")
	t.Setenv("JARVIS_REDIS_ADDR", "redis:6379")
	t.Setenv("JARVIS_REDIS_DB", "3")
	t.Setenv("JARVIS_ALLOWED_REFERER_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.OAuth.ClientID)
	assert.Equal(t, "env-secret", cfg.OAuth.ClientSecret)
	assert.Equal(t, "https://login.example.com/token", cfg.OAuth.TokenEndpoint)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.OAuth.AllowedRefererOrigins)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("server: [unclosed"), 0o600))

		_, err := LoadConfig(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, oauth.ErrConfig)
	})

	t.Run("bad redis db", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JARVIS_REDIS_DB", "zero")

		_, err := LoadConfig(t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, oauth.ErrConfig)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))

	tests := []struct {
		name   string
		mutate func(*JarvisConfig)
		field  string
	}{
		{"missing client id", func(c *JarvisConfig) { c.OAuth.ClientID = "" }, "oauth.clientId"},
		{"missing secret", func(c *JarvisConfig) { c.OAuth.ClientSecret = "" }, "oauth.clientSecret"},
		{"missing token endpoint", func(c *JarvisConfig) { c.OAuth.TokenEndpoint = "" }, "oauth.tokenEndpoint"},
		{"missing redirect base", func(c *JarvisConfig) { c.OAuth.RedirectBase = "" }, "oauth.redirectBase"},
		{"relative redirect base", func(c *JarvisConfig) { c.OAuth.RedirectBase = "/jarvis" }, "oauth.redirectBase"},
		{"unknown backend", func(c *JarvisConfig) { c.Storage.Backend = "sqlite" }, "storage.backend"},
		{"postgres without url", func(c *JarvisConfig) { c.Storage.Backend = BackendPostgres }, "storage.postgres.databaseUrl"},
		{"jwt without key", func(c *JarvisConfig) { c.Auth.SigningKey = "" }, "auth.signingKey"},
		{"unknown auth mode", func(c *JarvisConfig) { c.Auth.Mode = "basic" }, "auth.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)

			err := Validate(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, oauth.ErrConfig))

			var coll ConfigurationErrorCollection
			require.True(t, errors.As(err, &coll))
			var fields []string
			for _, e := range coll.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_SecretFileSatisfiesSecret(t *testing.T) {
	c := validConfig()
	c.OAuth.ClientSecret = ""
	c.OAuth.ClientSecretFile = "/var/run/secrets/client-secret"
	assert.NoError(t, Validate(c))
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := GetDefaultConfig()

	err := Validate(c)
	var coll ConfigurationErrorCollection
	require.True(t, errors.As(err, &coll))
	// client id, secret, redirect base, signing key
	assert.Equal(t, 4, len(coll.Errors))
	assert.Contains(t, coll.GetDetailedReport(), "CLIENT_ID")
}
