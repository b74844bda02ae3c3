package config

import (
	"time"

	"jarvis/internal/oauth"
)

const (
	// DefaultListenAddress is where the HTTP server binds.
	DefaultListenAddress = ":8080"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultCallbackRateLimit allows a handful of callbacks per second per IP.
	DefaultCallbackRateLimit = 2.0
	DefaultCallbackBurst     = 10

	// DefaultUserHeader is the header trusted in header auth mode.
	DefaultUserHeader = "X-User-Id"
)

// GetDefaultConfig returns the configuration used when no file and no
// environment override is present. Client id, secret and redirect base have
// no defaults.
func GetDefaultConfig() JarvisConfig {
	return JarvisConfig{
		Server: ServerConfig{
			ListenAddress:     DefaultListenAddress,
			ShutdownTimeout:   DefaultShutdownTimeout,
			CallbackRateLimit: DefaultCallbackRateLimit,
			CallbackBurst:     DefaultCallbackBurst,
		},
		OAuth: OAuthConfig{
			AuthorizeEndpoint: oauth.DefaultAuthorizeEndpoint,
			TokenEndpoint:     oauth.DefaultTokenEndpoint,
			CallbackPath:      oauth.DefaultCallbackPath,
			Scopes:            oauth.DefaultScopes(oauth.IntegrationOneDrive),
			PendingTTL:        oauth.DefaultPendingTTL,
			ExpiryMargin:      oauth.DefaultExpiryMargin,
			RequestTimeout:    oauth.DefaultRequestTimeout,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Auth: AuthConfig{
			Mode:       AuthModeJWT,
			UserHeader: DefaultUserHeader,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
