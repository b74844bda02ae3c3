package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds a response, including a token exchange.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 15 * time.Second

	// GenerateAuthLinkPath starts an authorization.
	GenerateAuthLinkPath = "/integrations/GenerateAuthLink"
	// IntegrationsPath lists the caller's integrations.
	IntegrationsPath = "/integrations"
)

// Config configures the HTTP server.
type Config struct {
	ListenAddress   string
	ShutdownTimeout time.Duration

	// CallbackPath must match the path used to build redirect URIs.
	CallbackPath string

	// CallbackRateLimit is requests per second per client IP; zero disables.
	CallbackRateLimit float64
	CallbackBurst     int
}

// Server serves the integration endpoints.
type Server struct {
	cfg        Config
	handler    http.Handler
	httpServer *http.Server
}

// New builds the route table. gatherer may be nil, in which case /metrics
// is not served.
func New(cfg Config, integrations *oauth.Handler, auth Authenticator, gatherer prometheus.Gatherer) (*Server, error) {
	if integrations == nil {
		return nil, fmt.Errorf("integrations handler is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = oauth.DefaultCallbackPath
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	mux := http.NewServeMux()

	// Health check endpoint for Kubernetes probes (unauthenticated)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	limiter := newIPRateLimiter(cfg.CallbackRateLimit, cfg.CallbackBurst)
	mux.Handle("GET "+cfg.CallbackPath, limiter.middleware(http.HandlerFunc(integrations.ExchangeCodeForToken)))
	mux.Handle("GET "+GenerateAuthLinkPath, requireUser(auth, http.HandlerFunc(integrations.GenerateAuthLink)))
	mux.Handle("GET "+IntegrationsPath, requireUser(auth, http.HandlerFunc(integrations.ListIntegrations)))

	logging.Info("Server", "Registered integration endpoints (callback=%s)", cfg.CallbackPath)

	return &Server{cfg: cfg, handler: requestLogger(mux)}, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully. ready, if non-nil, is called once the listener
// is bound.
func (s *Server) Run(ctx context.Context, ready func(addr net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln, ready)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, ready func(addr net.Addr)) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	logging.Info("Server", "Listening on %s", ln.Addr())
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logging.Info("Server", "Shutting down (timeout %s)", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	<-errCh
	return nil
}
