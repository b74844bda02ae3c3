// Package config loads the broker configuration.
//
// Configuration is read from config.yaml in a single directory (default
// ~/.config/jarvis, overridable with --config-path) on top of built-in
// defaults, then environment variables override individual values:
//
//	CLIENT_ID, CLIENT_SECRET, CLIENT_SECRET_FILE, TOKEN_ENDPOINT,
//	AUTHORIZE_ENDPOINT, REDIRECT_BASE, JARVIS_LISTEN_ADDRESS,
//	JARVIS_REDIS_ADDR, JARVIS_REDIS_PASSWORD, JARVIS_REDIS_DB,
//	JARVIS_DATABASE_URL, JARVIS_STORAGE_BACKEND, JARVIS_KUBERNETES_NAMESPACE,
//	JARVIS_AUTH_MODE, JARVIS_AUTH_SIGNING_KEY, JARVIS_ALLOWED_REFERER_ORIGINS,
//	JARVIS_LOG_LEVEL
//
// Validate enumerates every problem at once. Client id, client secret,
// token endpoint and redirect base are required; their absence is a
// ConfigurationError, which matches oauth.ErrConfig.
//
// Example config.yaml:
//
//	server:
//	  listenAddress: ":8080"
//	oauth:
//	  clientId: 00000000-0000-0000-0000-000000000000
//	  clientSecretFile: /var/run/secrets/jarvis/client-secret
//	  redirectBase: https://jarvis.example.com
//	  allowedRefererOrigins: [https://app.example.com]
//	storage:
//	  backend: postgres
//	  postgres:
//	    databaseUrl: postgres://jarvis@db/jarvis
//	  redis:
//	    addr: redis:6379
//	auth:
//	  mode: jwt
package config
