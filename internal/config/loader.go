package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"jarvis/pkg/logging"
)

const (
	userConfigDir  = ".config/jarvis"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns ~/.config/jarvis.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig reads config.yaml from configPath on top of the defaults and
// then applies environment overrides. A missing file is not an error. The
// result is not validated; call Validate.
func LoadConfig(configPath string) (JarvisConfig, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return JarvisConfig{}, NewConfigurationError(configFilePath, "", "io", fmt.Sprintf("cannot read config: %v", err))
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return JarvisConfig{}, NewConfigurationError(configFilePath, "", "parse", err.Error())
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnv(&config, os.LookupEnv); err != nil {
		return JarvisConfig{}, err
	}
	return config, nil
}

// envOverride maps an environment variable onto a string field.
type envOverride struct {
	name  string
	field func(*JarvisConfig) *string
}

var stringOverrides = []envOverride{
	{"CLIENT_ID", func(c *JarvisConfig) *string { return &c.OAuth.ClientID }},
	{"CLIENT_SECRET", func(c *JarvisConfig) *string { return &c.OAuth.ClientSecret }},
	{"CLIENT_SECRET_FILE", func(c *JarvisConfig) *string { return &c.OAuth.ClientSecretFile }},
	{"TOKEN_ENDPOINT", func(c *JarvisConfig) *string { return &c.OAuth.TokenEndpoint }},
	{"AUTHORIZE_ENDPOINT", func(c *JarvisConfig) *string { return &c.OAuth.AuthorizeEndpoint }},
	{"REDIRECT_BASE", func(c *JarvisConfig) *string { return &c.OAuth.RedirectBase }},
	{"JARVIS_LISTEN_ADDRESS", func(c *JarvisConfig) *string { return &c.Server.ListenAddress }},
	{"JARVIS_REDIS_ADDR", func(c *JarvisConfig) *string { return &c.Storage.Redis.Addr }},
	{"JARVIS_REDIS_PASSWORD", func(c *JarvisConfig) *string { return &c.Storage.Redis.Password }},
	{"JARVIS_DATABASE_URL", func(c *JarvisConfig) *string { return &c.Storage.Postgres.DatabaseURL }},
	{"JARVIS_STORAGE_BACKEND", func(c *JarvisConfig) *string { return &c.Storage.Backend }},
	{"JARVIS_KUBERNETES_NAMESPACE", func(c *JarvisConfig) *string { return &c.Storage.Kubernetes.Namespace }},
	{"JARVIS_AUTH_MODE", func(c *JarvisConfig) *string { return &c.Auth.Mode }},
	{"JARVIS_AUTH_SIGNING_KEY", func(c *JarvisConfig) *string { return &c.Auth.SigningKey }},
	{"JARVIS_LOG_LEVEL", func(c *JarvisConfig) *string { return &c.Logging.Level }},
}

func applyEnv(config *JarvisConfig, lookup func(string) (string, bool)) error {
	for _, o := range stringOverrides {
		if v, ok := lookup(o.name); ok && v != "" {
			*o.field(config) = v
		}
	}

	if v, ok := lookup("JARVIS_ALLOWED_REFERER_ORIGINS"); ok && v != "" {
		config.OAuth.AllowedRefererOrigins = splitList(v)
	}
	if v, ok := lookup("JARVIS_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return NewConfigurationError("JARVIS_REDIS_DB", "storage.redis.db", "parse", "must be an integer")
		}
		config.Storage.Redis.DB = db
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
