package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// DefaultStateTTL bounds the time between AuthorizationURL and the callback.
const DefaultStateTTL = 10 * time.Minute

// Config describes the OAuth2 client registration and provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	// Scopes are requested when AuthorizationURL is called without any.
	Scopes []string
	// Prompt, when set, is passed as the prompt parameter of the
	// authorization request.
	Prompt   string
	StateTTL time.Duration
	// PKCE adds an S256 code challenge to the authorization request and
	// sends the matching verifier with the code exchange.
	PKCE bool
}

// Options holds optional collaborators of a Manager.
type Options struct {
	// HTTPClient is used for calls to the token endpoint.
	HTTPClient *http.Client
	// Now replaces time.Now.
	Now func() time.Time
	// OnTokenUpdate is called after every token exchange or refresh has
	// been written to the session.
	OnTokenUpdate func(ctx context.Context, sess session.Store, tok *Token)
}

// Manager runs the authorization code flow and keeps the session's token
// usable. It holds no per-visitor state; everything lives in the
// session.Store passed to each call.
type Manager struct {
	conf          *oauth2.Config
	prompt        string
	pkce          bool
	stateTTL      time.Duration
	httpClient    *http.Client
	now           func() time.Time
	onTokenUpdate func(ctx context.Context, sess session.Store, tok *Token)
}

// NewManager creates a token manager.
func NewManager(cfg Config, opts Options) *Manager {
	m := &Manager{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       NormalizeScopes(cfg.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		prompt:        cfg.Prompt,
		pkce:          cfg.PKCE,
		stateTTL:      cfg.StateTTL,
		httpClient:    opts.HTTPClient,
		now:           opts.Now,
		onTokenUpdate: opts.OnTokenUpdate,
	}
	if m.stateTTL <= 0 {
		m.stateTTL = DefaultStateTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// AuthorizationURL starts a login: it stores a fresh AuthState in the
// session and returns the provider URL to redirect the visitor to, along
// with the state value embedded in it. An earlier pending login of the same
// session is superseded.
func (m *Manager) AuthorizationURL(sess session.Store, scopes []string) (string, string, error) {
	scopes = NormalizeScopes(scopes)
	if len(scopes) == 0 {
		scopes = m.conf.Scopes
	}

	state, err := generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	pending := AuthState{
		State:    state,
		Scopes:   scopes,
		IssuedAt: m.now().UTC(),
	}

	var params []oauth2.AuthCodeOption
	if m.prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", m.prompt))
	}
	if m.pkce {
		pending.Verifier = oauth2.GenerateVerifier()
		params = append(params, oauth2.S256ChallengeOption(pending.Verifier))
	}

	if err := sess.Set(KeyAuthState, pending); err != nil {
		return "", "", fmt.Errorf("failed to store state: %w", err)
	}

	conf := *m.conf
	conf.Scopes = scopes

	logging.Debug("OAuth", "Generated authorization URL for session=%s scopes=%v",
		logging.TruncateSessionID(sess.ID()), scopes)

	return conf.AuthCodeURL(state, params...), state, nil
}

// HandleCallback completes a login from the provider's redirect back to us.
//
// The checks run in order: a provider error= value, then the state against
// the session's pending AuthState, then the presence of a code, and finally
// the code exchange. The pending AuthState is removed by every call, so a
// state value is accepted at most once.
func (m *Manager) HandleCallback(ctx context.Context, sess session.Store, callbackURL *url.URL) (*Token, error) {
	query := callbackURL.Query()
	sessionID := logging.TruncateSessionID(sess.ID())

	var pending AuthState
	found, getErr := sess.Get(KeyAuthState, &pending)
	if err := sess.Delete(KeyAuthState); err != nil {
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}

	if code := query.Get("error"); code != "" {
		perr := &ProviderError{Code: code, Description: query.Get("error_description")}
		logging.Info("OAuth", "Authorization for session=%s ended with provider error %q", sessionID, code)
		return nil, perr
	}

	switch {
	case getErr != nil:
		logging.Warn("OAuth", "Unreadable pending state for session=%s: %v", sessionID, getErr)
		return nil, fmt.Errorf("%w: pending state unreadable", ErrCSRFMismatch)
	case !found:
		logging.Warn("OAuth", "Callback without pending login for session=%s", sessionID)
		return nil, fmt.Errorf("%w: no login in progress", ErrCSRFMismatch)
	case !constantTimeEquals(query.Get("state"), pending.State) || pending.State == "":
		logging.Warn("OAuth", "State mismatch for session=%s", sessionID)
		return nil, fmt.Errorf("%w: state does not match", ErrCSRFMismatch)
	case m.now().Sub(pending.IssuedAt) > m.stateTTL:
		logging.Warn("OAuth", "State expired for session=%s (age %s)", sessionID, m.now().Sub(pending.IssuedAt))
		return nil, fmt.Errorf("%w: state expired", ErrCSRFMismatch)
	}

	code := query.Get("code")
	if code == "" {
		return nil, &ProviderError{Code: "invalid_request", Description: "callback is missing the authorization code"}
	}

	var opts []oauth2.AuthCodeOption
	if pending.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(pending.Verifier))
	}

	start := m.now()
	t, err := m.conf.Exchange(m.clientContext(ctx), code, opts...)
	if err != nil {
		terr := newTokenError(OpExchange, err)
		logging.Error("OAuth", terr, "Code exchange failed for session=%s", sessionID)
		return nil, terr
	}

	tok := tokenFromOAuth2(t)
	if tok.Scope == "" {
		tok.Scope = strings.Join(pending.Scopes, " ")
	}
	if err := m.persist(ctx, sess, tok); err != nil {
		return nil, err
	}

	logging.Info("OAuth", "Session=%s signed in (exchange took %s, expires %s)",
		sessionID, m.now().Sub(start), tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}

// EnsureFresh returns tok unchanged while it has not expired. An expired
// token is refreshed and the result persisted; the provider may rotate the
// refresh token and whatever it returns is kept.
//
// When the provider rejects the refresh, or there is no refresh token, the
// stored token is removed and the error matches both ErrTokenRefreshFailed
// and ErrNotSignedIn. A transport failure keeps the token so a later request
// can retry.
//
// Concurrent refreshes for the same session are not coordinated: whichever
// completes last is the one left in the session.
func (m *Manager) EnsureFresh(ctx context.Context, sess session.Store, tok *Token) (*Token, error) {
	if tok == nil {
		return nil, ErrNotSignedIn
	}
	if !tok.Expired(m.now()) {
		return tok, nil
	}

	sessionID := logging.TruncateSessionID(sess.ID())

	if tok.RefreshToken == "" {
		logging.Info("OAuth", "Token expired without refresh token for session=%s", sessionID)
		if err := sess.Delete(KeyToken); err != nil {
			return nil, err
		}
		return nil, &TokenError{Op: OpRefresh, Rejected: true, Err: errors.New("no refresh token")}
	}

	logging.Debug("OAuth", "Refreshing token for session=%s (expired %s)", sessionID, tok.ExpiresAt.Format(time.RFC3339))

	src := m.conf.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	t, err := src.Token()
	if err != nil {
		terr := newTokenError(OpRefresh, err)
		if terr.Rejected {
			logging.Warn("OAuth", "Refresh rejected for session=%s, signing out: %v", sessionID, terr)
			if delErr := sess.Delete(KeyToken); delErr != nil {
				return nil, delErr
			}
		} else {
			logging.Error("OAuth", terr, "Refresh failed for session=%s", sessionID)
		}
		return nil, terr
	}

	refreshed := tokenFromOAuth2(t)
	if refreshed.Scope == "" {
		refreshed.Scope = tok.Scope
	}
	if err := m.persist(ctx, sess, refreshed); err != nil {
		return nil, err
	}

	logging.Debug("OAuth", "Refreshed token for session=%s (expires %s)", sessionID, refreshed.ExpiresAt.Format(time.RFC3339))
	return refreshed, nil
}

// Token returns the session's token, or ErrNotSignedIn. A stored token that
// cannot be decoded is removed.
func (m *Manager) Token(sess session.Store) (*Token, error) {
	var tok Token
	found, err := sess.Get(KeyToken, &tok)
	if err != nil {
		logging.Warn("OAuth", "Discarding unreadable token for session=%s: %v", logging.TruncateSessionID(sess.ID()), err)
		_ = sess.Delete(KeyToken)
		return nil, ErrNotSignedIn
	}
	if !found || tok.AccessToken == "" {
		return nil, ErrNotSignedIn
	}
	return &tok, nil
}

// SignedIn reports whether the session completed the handshake. It does
// not check expiry; an expired token is still refreshable.
func (m *Manager) SignedIn(sess session.Store) bool {
	_, err := m.Token(sess)
	return err == nil
}

// DropToken removes the token but keeps the rest of the session. It is
// used when the API rejects a token the session still believes valid.
func (m *Manager) DropToken(sess session.Store) error {
	return sess.Delete(KeyToken)
}

// Clear signs the visitor out, removing the pending login, the token and
// every cached value of the session.
func (m *Manager) Clear(sess session.Store) error {
	logging.Info("OAuth", "Signing out session=%s", logging.TruncateSessionID(sess.ID()))
	return sess.Clear()
}

func (m *Manager) persist(ctx context.Context, sess session.Store, tok *Token) error {
	if err := sess.Set(KeyToken, tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if m.onTokenUpdate != nil {
		m.onTokenUpdate(ctx, sess, tok)
	}
	return nil
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func newTokenError(op string, err error) *TokenError {
	terr := &TokenError{Op: op, Err: err}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		terr.Code = re.ErrorCode
		terr.Description = re.ErrorDescription
		if re.Response != nil {
			terr.StatusCode = re.Response.StatusCode
		}
		// A 5xx says nothing about the grant itself.
		terr.Rejected = terr.StatusCode < 500 || terr.Code != ""
	}
	return terr
}
