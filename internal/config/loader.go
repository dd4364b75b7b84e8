package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/giantswarm/discord-oauth/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/discord-oauth"
	configFileName = "config.yaml"

	// envPrefix is prepended to every environment override.
	envPrefix = "DISCORD_OAUTH_"
)

// Replaced in tests.
var (
	lookupEnv     = os.LookupEnv
	osUserHomeDir = os.UserHomeDir
)

// DefaultConfigPath returns ~/.config/discord-oauth/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig builds the effective configuration: defaults, then the YAML file
// at configFilePath (a missing file is not an error), then environment
// overrides. An empty path uses DefaultConfigPath.
//
// The result is not validated; call Validate before using it.
func LoadConfig(configFilePath string) (Config, error) {
	config := GetDefaultConfig()

	if configFilePath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		configFilePath = p
	}

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config file found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "io",
			Message:   "cannot read configuration file",
			Details:   err.Error(),
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, &ConfigurationError{
				FilePath:    configFilePath,
				ErrorType:   "parse",
				Message:     "malformed YAML",
				Details:     err.Error(),
				Suggestions: []string{"check indentation and that keys use camelCase (e.g. clientId, redirectUri)"},
			}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// applyEnvOverrides layers DISCORD_OAUTH_* variables over the file values.
// Secrets are usually supplied this way (or via a .env file loaded by the CLI).
func applyEnvOverrides(c *Config) error {
	var errs ConfigurationErrorCollection

	str := func(name string, dst *string) {
		if v, ok := lookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v, ok := lookupEnv(envPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs.Add(envError(name, v, "must be an integer"))
			return
		}
		*dst = n
	}
	flt := func(name string, dst *float64) {
		v, ok := lookupEnv(envPrefix + name)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs.Add(envError(name, v, "must be a number"))
			return
		}
		*dst = f
	}
	boolean := func(name string, dst *bool) {
		v, ok := lookupEnv(envPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs.Add(envError(name, v, "must be true or false"))
			return
		}
		*dst = b
	}

	boolean("DEBUG", &c.Debug)
	str("LOG_FORMAT", &c.LogFormat)

	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)

	str("CLIENT_ID", &c.OAuth.ClientID)
	str("CLIENT_SECRET", &c.OAuth.ClientSecret)
	str("REDIRECT_URI", &c.OAuth.RedirectURI)
	str("PROMPT", &c.OAuth.Prompt)
	boolean("PKCE", &c.OAuth.PKCE)
	if v, ok := lookupEnv(envPrefix + "SCOPES"); ok {
		c.OAuth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	str("API_BASE_URL", &c.API.BaseURL)
	num("API_VERSION", &c.API.Version)
	flt("API_REQUESTS_PER_SECOND", &c.API.RequestsPerSecond)

	num("CACHE_TTL_SECONDS", &c.Cache.TTLSeconds)

	str("SESSION_BACKEND", &c.Session.Backend)
	str("SESSION_SECRET", &c.Session.Secret)
	boolean("SESSION_SECURE", &c.Session.Secure)
	str("REDIS_ADDR", &c.Session.Redis.Addr)
	str("REDIS_PASSWORD", &c.Session.Redis.Password)
	num("REDIS_DB", &c.Session.Redis.DB)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func envError(name, value, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  "env:" + envPrefix + name,
		ErrorType: "env",
		Message:   message,
		Details:   fmt.Sprintf("got %q", value),
	}
}
