package config

import (
	"strconv"
	"strings"
	"time"
)

// Config is the top-level configuration structure for discord-oauth.
type Config struct {
	// Debug lowers the log level to DEBUG and logs cache hits/misses and
	// every OAuth step.
	Debug bool `yaml:"debug,omitempty"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `yaml:"logFormat,omitempty"`

	Server  ServerConfig  `yaml:"server"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig configures the HTTP listener and the paths of the login,
// callback and logout entry points.
type ServerConfig struct {
	Host               string `yaml:"host,omitempty"`
	Port               int    `yaml:"port,omitempty"`
	LoginPath          string `yaml:"loginPath,omitempty"`
	CallbackPath       string `yaml:"callbackPath,omitempty"`
	LogoutPath         string `yaml:"logoutPath,omitempty"`
	PostLoginRedirect  string `yaml:"postLoginRedirect,omitempty"`
	PostLogoutRedirect string `yaml:"postLogoutRedirect,omitempty"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// OAuthConfig holds the application's OAuth2 client registration.
type OAuthConfig struct {
	ClientID     string   `yaml:"clientId,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	RedirectURI  string   `yaml:"redirectUri,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`

	// Prompt is passed through to the authorization endpoint when set
	// ("consent" forces the consent screen, "none" skips it for returning users).
	Prompt string `yaml:"prompt,omitempty"`

	// PKCE sends an S256 code challenge with every authorization request.
	PKCE bool `yaml:"pkce,omitempty"`

	// StateTTLSeconds bounds how long a login may take between the redirect
	// to the provider and the callback.
	StateTTLSeconds int `yaml:"stateTtlSeconds,omitempty"`
}

// StateTTL returns the CSRF state lifetime.
func (o OAuthConfig) StateTTL() time.Duration {
	return time.Duration(o.StateTTLSeconds) * time.Second
}

// APIConfig configures access to the provider REST API.
type APIConfig struct {
	BaseURL           string  `yaml:"baseUrl,omitempty"`
	Version           int     `yaml:"version,omitempty"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds,omitempty"`
}

// VersionedBaseURL returns the base URL including the version path,
// e.g. https://discord.com/api/v9. A zero version yields the unversioned base.
func (a APIConfig) VersionedBaseURL() string {
	base := strings.TrimRight(a.BaseURL, "/")
	if a.Version <= 0 {
		return base
	}
	return base + "/v" + strconv.Itoa(a.Version)
}

// AuthorizeURL is the browser-facing authorization endpoint.
func (a APIConfig) AuthorizeURL() string {
	return a.VersionedBaseURL() + "/oauth2/authorize"
}

// TokenURL is the token endpoint used for code exchange and refresh.
func (a APIConfig) TokenURL() string {
	return a.VersionedBaseURL() + "/oauth2/token"
}

// Timeout returns the HTTP client timeout for upstream calls.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// CacheConfig configures the profile cache window.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttlSeconds,omitempty"`
}

// TTL returns the cache window as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
)

// SessionConfig selects and configures the per-visitor session store.
type SessionConfig struct {
	Backend       string      `yaml:"backend,omitempty"`
	CookieName    string      `yaml:"cookieName,omitempty"`
	Secret        string      `yaml:"secret,omitempty"`
	MaxAgeSeconds int         `yaml:"maxAgeSeconds,omitempty"`
	Secure        bool        `yaml:"secure,omitempty"`
	Redis         RedisConfig `yaml:"redis,omitempty"`
}

// MaxAge returns the session lifetime.
func (s SessionConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeSeconds) * time.Second
}

// RedisConfig is used when Backend is "redis".
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}
