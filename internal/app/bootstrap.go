package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/discord-oauth/internal/config"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs the sign-in server.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load and validate configuration, initialize logging,
//     build the session store, token manager, API client, profile cache and
//     HTTP server
//  2. Execution phase: serve until interrupted
//
// Example usage:
//
//	cfg := app.NewConfig(true, "", 0)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	settings config.Config
	services *Services
}

// NewApplication creates and initializes a new application instance.
//
// Configuration errors are returned unwrapped from the config package
// (config.ValidationErrors, *config.ConfigurationError or
// config.ConfigurationErrorCollection) so callers can tell them apart from
// runtime failures.
func NewApplication(cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}

	// Bootstrap logging until the configured format is known
	logging.InitForCLI(levelFor(cfg.Debug), logOutput)

	settings, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}

	logging.Init(levelFor(settings.Debug), logging.Format(settings.LogFormat), logOutput)

	services, err := InitializeServices(settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		settings: settings,
		services: services,
	}, nil
}

// LoadSettings loads the configuration named by cfg, applies the command
// line overrides and validates the result.
func LoadSettings(cfg *Config) (config.Config, error) {
	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
	} else {
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return config.Config{}, err
		}
		settings = loaded
	}

	if cfg.Debug {
		settings.Debug = true
	}
	if cfg.Port != 0 {
		settings.Server.Port = cfg.Port
	}

	if err := settings.Validate(); err != nil {
		return config.Config{}, err
	}
	return settings, nil
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.Config {
	return a.settings
}

// Run serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully and releases the services.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}

func levelFor(debug bool) logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}
