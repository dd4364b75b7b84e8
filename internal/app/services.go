package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/giantswarm/discord-oauth/internal/config"
	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/profile"
	"github.com/giantswarm/discord-oauth/internal/server"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

// Services holds all initialized components of the application.
//
// The components are created in dependency order:
//  1. Session backend and manager
//  2. Token manager (OAuth2 client against Discord's token endpoint)
//  3. API client, authenticated by the token manager
//  4. Profile cache, filled through the API client
//  5. HTTP server wiring all of the above
type Services struct {
	Backend  session.Backend
	Sessions *session.Manager
	Tokens   *oauth.Manager
	API      *discord.Client
	Profiles *profile.Cache
	Server   *server.Server

	closers []func() error
}

// InitializeServices creates every component from a validated configuration.
func InitializeServices(cfg config.Config) (*Services, error) {
	backend, closeBackend, err := newSessionBackend(cfg.Session)
	if err != nil {
		return nil, err
	}
	s := &Services{Backend: backend}
	if closeBackend != nil {
		s.closers = append(s.closers, closeBackend)
	}

	s.Sessions = session.NewManager(backend, session.Options{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge(),
		Secure:     cfg.Session.Secure,
		SaveErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			server.WriteError(w, r, err)
		},
	})

	httpClient := &http.Client{Timeout: cfg.API.Timeout()}

	s.Tokens = oauth.NewManager(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURI,
		AuthURL:      cfg.API.AuthorizeURL(),
		TokenURL:     cfg.API.TokenURL(),
		Scopes:       cfg.OAuth.Scopes,
		Prompt:       cfg.OAuth.Prompt,
		StateTTL:     cfg.OAuth.StateTTL(),
		PKCE:         cfg.OAuth.PKCE,
	}, oauth.Options{
		HTTPClient: httpClient,
		OnTokenUpdate: func(_ context.Context, sess session.Store, tok *oauth.Token) {
			logging.Debug("OAuth", "Token updated for session=%s scope=%q expires=%s",
				logging.TruncateSessionID(sess.ID()), tok.Scope, tok.ExpiresAt.Format(time.RFC3339))
		},
	})

	s.API = discord.NewClient(s.Tokens,
		discord.WithBaseURL(cfg.API.VersionedBaseURL()),
		discord.WithHTTPClient(httpClient),
		discord.WithRateLimit(cfg.API.RequestsPerSecond),
	)

	s.Profiles = profile.NewCache(s.API, profile.WithTTL(cfg.Cache.TTL()))

	s.Server = server.New(server.Config{
		Addr:               cfg.Server.Addr(),
		LoginPath:          cfg.Server.LoginPath,
		CallbackPath:       cfg.Server.CallbackPath,
		LogoutPath:         cfg.Server.LogoutPath,
		PostLoginRedirect:  cfg.Server.PostLoginRedirect,
		PostLogoutRedirect: cfg.Server.PostLogoutRedirect,
	}, s.Tokens, s.Profiles, s.Sessions)

	logging.Info("Bootstrap", "Initialized services (session backend=%s, api=%s, cache ttl=%s)",
		cfg.Session.Backend, cfg.API.VersionedBaseURL(), s.Profiles.TTL())
	return s, nil
}

// newSessionBackend builds the configured session store. The returned
// closer, if any, releases its resources.
func newSessionBackend(cfg config.SessionConfig) (session.Backend, func() error, error) {
	switch cfg.Backend {
	case config.SessionBackendMemory, "":
		b := session.NewMemoryBackend()
		return b, func() error { b.Stop(); return nil }, nil

	case config.SessionBackendCookie:
		// Cached profile data does not fit in a cookie; it stays in process.
		local := session.NewMemoryBackend()
		b := session.NewSplitBackend(session.NewCookieBackend([]byte(cfg.Secret)), local, profile.IsCacheKey)
		return b, func() error { local.Stop(); return nil }, nil

	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logging.Info("Bootstrap", "Using redis session storage at %s", cfg.Redis.Addr)
		return session.NewRedisBackend(client, cfg.Redis.KeyPrefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session backend: %s (supported: %s, %s, %s)",
			cfg.Backend, config.SessionBackendMemory, config.SessionBackendCookie, config.SessionBackendRedis)
	}
}

// Close releases the services in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
