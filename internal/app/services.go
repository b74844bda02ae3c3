package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"k8s.io/client-go/rest"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"jarvis/internal/config"
	"jarvis/internal/oauth"
	"jarvis/internal/secretwatch"
	"jarvis/internal/server"
	"jarvis/internal/storage/kubernetes"
	"jarvis/internal/storage/postgres"
	"jarvis/internal/storage/redisstore"
	"jarvis/pkg/logging"
)

// storageConnectTimeout bounds connecting to Redis and Postgres at startup.
const storageConnectTimeout = 10 * time.Second

// kubeConfig loads in-cluster or kubeconfig credentials.
var kubeConfig func() (*rest.Config, error) = ctrlconfig.GetConfig

// Services holds every component wired for one process.
type Services struct {
	Manager  *oauth.Manager
	Server   *server.Server
	Registry *prometheus.Registry

	closers []func() error
}

// Close releases storage connections and stops the secret watcher.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Services) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// InitializeServices wires the broker from a validated configuration. On
// error everything opened so far is closed again.
func InitializeServices(ctx context.Context, cfg *config.JarvisConfig) (_ *Services, err error) {
	s := &Services{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	secret, err := s.clientSecret(cfg.OAuth)
	if err != nil {
		return nil, err
	}

	exchanger, err := oauth.NewTokenClient(oauth.TokenClientConfig{
		ClientID:      cfg.OAuth.ClientID,
		Secret:        secret,
		TokenEndpoint: cfg.OAuth.TokenEndpoint,
		HTTPClient:    &http.Client{Timeout: cfg.OAuth.RequestTimeout},
	})
	if err != nil {
		return nil, err
	}

	redirects, err := oauth.NewRedirectBuilder(oauth.RedirectConfig{
		ClientID:          cfg.OAuth.ClientID,
		AuthorizeEndpoint: cfg.OAuth.AuthorizeEndpoint,
		RedirectBase:      cfg.OAuth.RedirectBase,
		CallbackPath:      cfg.OAuth.CallbackPath,
		Scopes:            cfg.OAuth.Scopes,
	})
	if err != nil {
		return nil, err
	}

	managerCfg := oauth.ManagerConfig{
		Exchanger:             exchanger,
		Redirects:             redirects,
		AllowedRefererOrigins: cfg.OAuth.AllowedRefererOrigins,
		ExpiryMargin:          cfg.OAuth.ExpiryMargin,
		RefreshTimeout:        cfg.OAuth.RequestTimeout,
	}

	if cfg.Storage.Redis.Addr != "" {
		client, err := s.connectRedis(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		managerCfg.Pending = redisstore.NewPendingStore(client, cfg.OAuth.PendingTTL)
		managerCfg.Cache = redisstore.NewTokenCache(client)
		managerCfg.Locker = redisstore.NewLocker(client, redisstore.LockTTLFor(cfg.OAuth.RequestTimeout))
		logging.Info("Bootstrap", "Using Redis at %s for pending authorizations and the access token cache", cfg.Storage.Redis.Addr)
	} else {
		managerCfg.Pending = oauth.NewMemoryPendingStore(cfg.OAuth.PendingTTL)
		managerCfg.Cache = oauth.NewMemoryTokenCache()
		logging.Info("Bootstrap", "Using in-memory pending authorizations and access token cache")
	}

	integrations, closeStore, err := OpenIntegrationStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.onClose(closeStore)
	managerCfg.Integrations = integrations

	managerCfg.Metrics, err = oauth.NewMetrics(s.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s.Manager, err = oauth.NewManager(managerCfg)
	if err != nil {
		return nil, err
	}

	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	s.Server, err = server.New(server.Config{
		ListenAddress:     cfg.Server.ListenAddress,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		CallbackPath:      cfg.OAuth.CallbackPath,
		CallbackRateLimit: cfg.Server.CallbackRateLimit,
		CallbackBurst:     cfg.Server.CallbackBurst,
	}, oauth.NewHandler(s.Manager, server.UserFromRequest), auth, s.Registry)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// clientSecret returns a static secret, or a swappable one kept in sync
// with oauth.clientSecretFile.
func (s *Services) clientSecret(cfg config.OAuthConfig) (oauth.ClientSecretProvider, error) {
	if cfg.ClientSecretFile == "" {
		return oauth.StaticSecret(cfg.ClientSecret), nil
	}

	secret := oauth.NewSwappableSecret(cfg.ClientSecret)
	watcher, err := secretwatch.New(secretwatch.Config{Path: cfg.ClientSecretFile, Target: secret})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oauth.ErrConfig, err)
	}
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch client secret file: %w", err)
	}
	s.onClose(watcher.Stop)
	return secret, nil
}

func (s *Services) connectRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s.onClose(client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, storageConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// OpenIntegrationStore opens the configured integration store. The returned
// close function is never nil.
func OpenIntegrationStore(ctx context.Context, cfg config.StorageConfig) (oauth.IntegrationStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory, "":
		logging.Info("Bootstrap", "Using in-memory integration store")
		return oauth.NewMemoryIntegrationStore(), noop, nil

	case config.BackendPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, storageConnectTimeout)
		defer cancel()

		pool, err := postgres.Connect(connectCtx, cfg.Postgres.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logging.Info("Bootstrap", "Using Postgres integration store")
		return store, func() error { pool.Close(); return nil }, nil

	case config.BackendKubernetes:
		restConfig, err := kubeConfig()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load Kubernetes config: %w", err)
		}
		k8sClient, err := kubernetes.NewClient(restConfig)
		if err != nil {
			return nil, noop, err
		}
		logging.Info("Bootstrap", "Using Kubernetes Secret integration store in namespace %s", cfg.Kubernetes.Namespace)
		return kubernetes.NewStore(k8sClient, cfg.Kubernetes.Namespace), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown storage backend %q", oauth.ErrConfig, cfg.Backend)
	}
}

func newAuthenticator(cfg config.AuthConfig) (server.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeHeader:
		logging.Warn("Bootstrap", "Trusting the %s header for caller identity; only expose jarvis behind an authenticating proxy", cfg.UserHeader)
		return server.HeaderAuthenticator{Header: cfg.UserHeader}, nil
	case config.AuthModeJWT, "":
		auth, err := server.NewJWTAuthenticator(cfg.SigningKey, cfg.Issuer, cfg.Audience)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", oauth.ErrConfig, err)
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", oauth.ErrConfig, cfg.Mode)
	}
}
