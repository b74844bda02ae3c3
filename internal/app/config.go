package app

import (
	"jarvis/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logging.level.
	Debug bool

	// ConfigPath is the directory holding config.yaml. Empty means
	// ~/.config/jarvis.
	ConfigPath string

	// JarvisConfig is populated by NewApplication.
	JarvisConfig *config.JarvisConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
