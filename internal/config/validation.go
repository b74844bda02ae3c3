package config

import (
	"fmt"
	"net/url"
	"strings"

	"jarvis/pkg/logging"
)

// Validate checks the configuration once at startup. Every problem is
// reported, not just the first one.
func Validate(c JarvisConfig) error {
	var errs ConfigurationErrorCollection

	required := func(field, env, value string) {
		if strings.TrimSpace(value) == "" {
			errs.Add(NewConfigurationError(env, field, "validation", "is required",
				fmt.Sprintf("set %s in config.yaml or the %s environment variable", field, env)))
		}
	}

	required("oauth.clientId", "CLIENT_ID", c.OAuth.ClientID)
	if c.OAuth.ClientSecret == "" && c.OAuth.ClientSecretFile == "" {
		errs.Add(NewConfigurationError("CLIENT_SECRET", "oauth.clientSecret", "validation", "is required",
			"set CLIENT_SECRET, or CLIENT_SECRET_FILE to read it from a mounted file"))
	}
	required("oauth.tokenEndpoint", "TOKEN_ENDPOINT", c.OAuth.TokenEndpoint)
	required("oauth.redirectBase", "REDIRECT_BASE", c.OAuth.RedirectBase)

	absoluteURL(&errs, "oauth.tokenEndpoint", c.OAuth.TokenEndpoint)
	absoluteURL(&errs, "oauth.authorizeEndpoint", c.OAuth.AuthorizeEndpoint)
	absoluteURL(&errs, "oauth.redirectBase", c.OAuth.RedirectBase)
	for _, origin := range c.OAuth.AllowedRefererOrigins {
		absoluteURL(&errs, "oauth.allowedRefererOrigins", origin)
	}

	if c.OAuth.PendingTTL < 0 || c.OAuth.ExpiryMargin < 0 || c.OAuth.RequestTimeout < 0 {
		errs.Add(NewConfigurationError("", "oauth", "validation", "durations must not be negative"))
	}

	switch c.Storage.Backend {
	case BackendMemory:
		if c.Storage.Redis.Addr != "" {
			logging.Warn("ConfigLoader", "Integrations are kept in memory while Redis is shared; they are lost on restart")
		}
	case BackendPostgres:
		required("storage.postgres.databaseUrl", "JARVIS_DATABASE_URL", c.Storage.Postgres.DatabaseURL)
	case BackendKubernetes:
	default:
		errs.Add(NewConfigurationError("JARVIS_STORAGE_BACKEND", "storage.backend", "validation",
			fmt.Sprintf("unknown backend %q", c.Storage.Backend),
			"use one of: memory, postgres, kubernetes"))
	}

	switch c.Auth.Mode {
	case AuthModeJWT:
		required("auth.signingKey", "JARVIS_AUTH_SIGNING_KEY", c.Auth.SigningKey)
	case AuthModeHeader:
		required("auth.userHeader", "", c.Auth.UserHeader)
	default:
		errs.Add(NewConfigurationError("JARVIS_AUTH_MODE", "auth.mode", "validation",
			fmt.Sprintf("unknown mode %q", c.Auth.Mode), "use one of: jwt, header"))
	}

	if c.Server.CallbackRateLimit < 0 || c.Server.CallbackBurst < 0 {
		errs.Add(NewConfigurationError("", "server.callbackRateLimit", "validation", "must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.Add(NewConfigurationError("JARVIS_LOG_LEVEL", "logging.level", "validation", err.Error(),
			"use one of: debug, info, warn, error"))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func absoluteURL(errs *ConfigurationErrorCollection, field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(NewConfigurationError("", field, "validation",
			fmt.Sprintf("%q is not an absolute http(s) URL", value)))
	}
}
