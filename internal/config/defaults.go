package config

const (
	// DefaultAPIBaseURL is the provider REST API root without a version path.
	DefaultAPIBaseURL = "https://discord.com/api"

	// DefaultAPIVersion is appended to DefaultAPIBaseURL as /v{n}.
	DefaultAPIVersion = 9

	// DefaultCacheTTLSeconds is the profile cache window.
	DefaultCacheTTLSeconds = 15

	// DefaultStateTTLSeconds is how long a pending login stays valid.
	DefaultStateTTLSeconds = 600

	// DefaultSessionCookieName is the name of the visitor session cookie.
	DefaultSessionCookieName = "discord_oauth_session"

	// DefaultSessionMaxAgeSeconds is the session lifetime (7 days).
	DefaultSessionMaxAgeSeconds = 7 * 24 * 60 * 60

	// DefaultRedisKeyPrefix namespaces session blobs in Redis.
	DefaultRedisKeyPrefix = "discord-oauth:session:"
)

// DefaultScopes are requested when the login entry point receives none.
var DefaultScopes = []string{"identify", "guilds"}

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() Config {
	return Config{
		LogFormat: "text",
		Server: ServerConfig{
			Host:               "localhost",
			Port:               8080,
			LoginPath:          "/login",
			CallbackPath:       "/callback",
			LogoutPath:         "/logout",
			PostLoginRedirect:  "/me",
			PostLogoutRedirect: "/",
		},
		OAuth: OAuthConfig{
			RedirectURI:     "http://localhost:8080/callback",
			Scopes:          append([]string(nil), DefaultScopes...),
			StateTTLSeconds: DefaultStateTTLSeconds,
		},
		API: APIConfig{
			BaseURL:        DefaultAPIBaseURL,
			Version:        DefaultAPIVersion,
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			TTLSeconds: DefaultCacheTTLSeconds,
		},
		Session: SessionConfig{
			Backend:       SessionBackendMemory,
			CookieName:    DefaultSessionCookieName,
			MaxAgeSeconds: DefaultSessionMaxAgeSeconds,
			Redis: RedisConfig{
				KeyPrefix: DefaultRedisKeyPrefix,
			},
		},
	}
}
