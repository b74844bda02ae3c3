package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"

	"jarvis/internal/config"
	"jarvis/pkg/logging"
)

// sdNotify is replaced in tests.
var sdNotify = daemon.SdNotify

// Application represents the main application structure that bootstraps and
// runs the broker.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and wires all
// services. Configuration problems are reported together and match
// oauth.ErrConfig.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	jarvisCfg, err := LoadConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg.JarvisConfig = &jarvisCfg

	InitLogging(cfg, os.Stderr)
	logging.Info("Bootstrap", "Starting jarvis (backend=%s, auth=%s)", jarvisCfg.Storage.Backend, jarvisCfg.Auth.Mode)

	services, err := InitializeServices(ctx, &jarvisCfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// LoadConfig loads and validates configuration from cfg.ConfigPath.
func LoadConfig(cfg *Config) (config.JarvisConfig, error) {
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	jarvisCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.JarvisConfig{}, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	if err := config.Validate(jarvisCfg); err != nil {
		return config.JarvisConfig{}, err
	}
	return jarvisCfg, nil
}

// InitLogging configures pkg/logging from the loaded configuration.
func InitLogging(cfg *Config, out io.Writer) {
	level := logging.LevelInfo
	format := logging.FormatText
	if cfg.JarvisConfig != nil {
		// Validate has already rejected unknown levels.
		level, _ = logging.ParseLevel(cfg.JarvisConfig.Logging.Level)
		format = cfg.JarvisConfig.Logging.Format
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(logging.Options{Level: level, Format: format, Output: out})
}

// Services exposes the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	err := a.services.Server.Run(ctx, func(addr net.Addr) {
		notify(daemon.SdNotifyReady)
	})
	notify(daemon.SdNotifyStopping)
	return err
}

// Close releases all resources.
func (a *Application) Close() error {
	return a.services.Close()
}

func notify(state string) {
	sent, err := sdNotify(false, state)
	if err != nil {
		logging.Warn("Bootstrap", "Failed to notify systemd (%s): %v", state, err)
		return
	}
	if sent {
		logging.Debug("Bootstrap", "Notified systemd: %s", state)
	}
}
