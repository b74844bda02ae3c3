package config

import "time"

// JarvisConfig is the top-level configuration structure.
type JarvisConfig struct {
	Server  ServerConfig  `yaml:"server"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listenAddress"`             // Address to bind (default: :8080)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"` // Grace period for in-flight requests

	// CallbackRateLimit is the per-client-IP request rate (req/s) allowed on
	// the OAuth callback. Zero disables limiting.
	CallbackRateLimit float64 `yaml:"callbackRateLimit,omitempty"`
	CallbackBurst     int     `yaml:"callbackBurst,omitempty"`
}

// OAuthConfig describes the OAuth client registered with the provider.
type OAuthConfig struct {
	ClientID string `yaml:"clientId"`

	// ClientSecret or ClientSecretFile must be set. The file wins and is
	// watched for rotation.
	ClientSecret     string `yaml:"clientSecret,omitempty"`
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	AuthorizeEndpoint string `yaml:"authorizeEndpoint,omitempty"`
	TokenEndpoint     string `yaml:"tokenEndpoint"`

	// RedirectBase is the public base URL of this service.
	RedirectBase string   `yaml:"redirectBase"`
	CallbackPath string   `yaml:"callbackPath,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`

	// AllowedRefererOrigins restricts post-login redirects. Empty allows any
	// absolute http(s) referer.
	AllowedRefererOrigins []string `yaml:"allowedRefererOrigins,omitempty"`

	PendingTTL     time.Duration `yaml:"pendingTtl,omitempty"`
	ExpiryMargin   time.Duration `yaml:"expiryMargin,omitempty"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
}

// Storage backends for integrations.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendKubernetes = "kubernetes"
)

// StorageConfig selects where state lives.
type StorageConfig struct {
	// Backend holds integrations: memory, postgres or kubernetes.
	Backend string `yaml:"backend"`

	// Redis, when Addr is set, holds pending authorizations and cached
	// access tokens and coordinates refreshes across replicas.
	Redis RedisConfig `yaml:"redis,omitempty"`

	Postgres   PostgresConfig   `yaml:"postgres,omitempty"`
	Kubernetes KubernetesConfig `yaml:"kubernetes,omitempty"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// PostgresConfig configures the Postgres integration store.
type PostgresConfig struct {
	DatabaseURL string `yaml:"databaseUrl,omitempty"`
}

// KubernetesConfig configures the Secret integration store.
type KubernetesConfig struct {
	Namespace string `yaml:"namespace,omitempty"`
}

// Authentication modes for the integration endpoints.
const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

// AuthConfig configures how callers of the integration endpoints are
// authenticated.
type AuthConfig struct {
	Mode string `yaml:"mode"`

	// JWT mode: HS256 bearer tokens whose sub claim is the user id.
	SigningKey string `yaml:"signingKey,omitempty"`
	Issuer     string `yaml:"issuer,omitempty"`
	Audience   string `yaml:"audience,omitempty"`

	// Header mode: an authenticating proxy puts the user id in this header.
	UserHeader string `yaml:"userHeader,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"`
}
