// Package config loads and validates discord-oauth configuration.
//
// The effective configuration is assembled in three layers:
//
//  1. built-in defaults (GetDefaultConfig)
//  2. a YAML file, by default ~/.config/discord-oauth/config.yaml
//  3. DISCORD_OAUTH_* environment variables
//
// A missing file is not an error. Client credentials are normally supplied
// through the environment:
//
//	DISCORD_OAUTH_CLIENT_ID=...
//	DISCORD_OAUTH_CLIENT_SECRET=...
//	DISCORD_OAUTH_REDIRECT_URI=https://example.com/callback
//
// # Example config.yaml
//
//	oauth:
//	  redirectUri: https://example.com/callback
//	  scopes: [identify, guilds]
//	cache:
//	  ttlSeconds: 15
//	session:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
//
// Validate reports all problems at once as ValidationErrors so that a
// misconfigured deployment can be fixed in a single pass.
package config
