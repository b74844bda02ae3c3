// Package app bootstraps the integration broker.
//
// Bootstrap happens in two phases. NewApplication loads and validates the
// configuration, initializes logging and wires every component:
//
//  1. Client secret: static, or read from a file and reloaded on rotation
//  2. Token client and redirect builder for the provider
//  3. Pending authorizations, access-token cache and refresh lock: Redis
//     when storage.redis.addr is set, otherwise in memory
//  4. Integration store: memory, Postgres or Kubernetes Secrets
//  5. Prometheus registry, token lifecycle manager, HTTP handlers and server
//
// Run then serves until the context is cancelled, notifying systemd when
// the listener is ready and again when shutdown begins.
//
// Example:
//
//	cfg := app.NewConfig(false, "/etc/jarvis")
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//		return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
//	return application.Run(ctx)
package app
