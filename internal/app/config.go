package app

import (
	"io"

	"github.com/giantswarm/discord-oauth/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Custom configuration file path (optional)
	ConfigPath string

	// Port overrides server.port when non-zero
	Port int

	// LogOutput receives log lines; defaults to stderr
	LogOutput io.Writer

	// Settings, when set, is used instead of loading ConfigPath
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string, port int) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Port:       port,
	}
}
