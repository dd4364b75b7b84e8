package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	// HealthPath is served without a session.
	HealthPath = "/healthz"
)

// Authenticator is the token manager as seen by the HTTP layer.
// *oauth.Manager implements it.
type Authenticator interface {
	SignInChecker
	AuthorizationURL(sess session.Store, scopes []string) (string, string, error)
	HandleCallback(ctx context.Context, sess session.Store, callbackURL *url.URL) (*oauth.Token, error)
	Clear(sess session.Store) error
}

// Profiles serves the signed-in visitor's Discord data.
// *profile.Cache implements it.
type Profiles interface {
	User(ctx context.Context, sess session.Store) (discord.User, error)
	Guilds(ctx context.Context, sess session.Store) ([]discord.Guild, error)
	Guild(ctx context.Context, sess session.Store, guildID uint64) (*discord.Guild, error)
	Member(ctx context.Context, sess session.Store, guildID uint64) (*discord.Member, error)
	Invalidate(sess session.Store) error
}

// Config holds the routes and redirect targets of the server.
type Config struct {
	Addr               string
	LoginPath          string
	CallbackPath       string
	LogoutPath         string
	PostLoginRedirect  string
	PostLogoutRedirect string
}

// Server is the HTTP front of the sign-in flow.
type Server struct {
	cfg        Config
	auth       Authenticator
	profiles   Profiles
	sessions   *session.Manager
	gate       *Gate
	httpServer *http.Server
}

// New creates a server. Nothing listens until Serve is called.
func New(cfg Config, auth Authenticator, profiles Profiles, sessions *session.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		auth:     auth,
		profiles: profiles,
		sessions: sessions,
		gate:     NewGate(auth, cfg.LoginPath),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s
}

// Gate returns the gate protecting the server's routes, for mounting
// further protected handlers.
func (s *Server) Gate() *Gate {
	return s.gate
}

// Handler builds the full handler chain: access log, panic recovery, then
// a mux whose routes, apart from the health check, run inside the session
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (unauthenticated, no session)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)

	mux.Handle("/", s.sessions.Middleware(s.sessionMux()))

	return accessLog(HealthPath, recoverPanics(mux))
}

func (s *Server) sessionMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET "+s.cfg.LoginPath, s.handleLogin)
	mux.HandleFunc("GET "+s.cfg.CallbackPath, s.handleCallback)
	// Logout must not be reachable from a cross-site GET.
	mux.HandleFunc("POST "+s.cfg.LogoutPath, s.handleLogout)

	mux.Handle("GET /me", s.gate.Protect(s.handleMePage))
	mux.Handle("GET /api/me", s.gate.Protect(s.handleAPIMe))
	mux.Handle("GET /api/guilds", s.gate.Protect(s.handleAPIGuilds))
	mux.Handle("GET /api/guilds/{id}", s.gate.Protect(s.handleAPIGuild))
	mux.Handle("GET /api/guilds/{id}/member", s.gate.Protect(s.handleAPIMember))

	logging.Debug("Server", "Registered login=%s callback=%s logout=%s",
		s.cfg.LoginPath, s.cfg.CallbackPath, s.cfg.LogoutPath)
	return mux
}

// Listen opens the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	logging.Info("Server", "Listening on http://%s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
