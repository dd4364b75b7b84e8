package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// HandlerFunc is a request handler that reports failure by returning an
// error instead of writing an error response itself. It must not write to
// w before it knows it will succeed.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler writes the response for an error returned by a protected
// handler.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// SignInChecker reports whether a session has completed the handshake.
type SignInChecker interface {
	SignedIn(sess session.Store) bool
}

var errNoSession = errors.New("no session in request context")

// Gate guards handlers that need a signed-in visitor.
type Gate struct {
	auth      SignInChecker
	loginPath string

	// ErrorHandler renders errors other than oauth.ErrNotSignedIn.
	// Defaults to WriteError.
	ErrorHandler ErrorHandler
}

// NewGate returns a gate that sends visitors without a token to loginPath.
func NewGate(auth SignInChecker, loginPath string) *Gate {
	return &Gate{
		auth:         auth,
		loginPath:    loginPath,
		ErrorHandler: WriteError,
	}
}

// Protect wraps h. The handler runs only when the session holds a token; a
// NotSignedIn error returned from it at any depth becomes a login redirect.
func (g *Gate) Protect(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			g.ErrorHandler(w, r, errNoSession)
			return
		}

		if !g.auth.SignedIn(sess) {
			logging.Debug("AuthGate", "No token for session=%s, redirecting %s to login",
				logging.TruncateSessionID(sess.ID()), r.URL.Path)
			g.redirectToLogin(w, r, sess)
			return
		}

		err := h(w, r)
		switch {
		case err == nil:
		case errors.Is(err, oauth.ErrNotSignedIn):
			logging.Info("AuthGate", "Session=%s lost its credentials during %s: %v",
				logging.TruncateSessionID(sess.ID()), r.URL.Path, err)
			g.redirectToLogin(w, r, sess)
		default:
			g.ErrorHandler(w, r, err)
		}
	})
}

// Middleware is Protect for plain http.Handlers.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return g.Protect(func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	})
}

// redirectToLogin remembers where a GET request was headed so the callback
// can return there, then redirects to the login entry point.
func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request, sess session.Store) {
	if r.Method == http.MethodGet {
		if next := r.URL.RequestURI(); isLocalPath(next) {
			if err := sess.Set(oauth.KeyNext, next); err != nil {
				logging.Warn("AuthGate", "Failed to remember %s: %v", next, err)
			}
		}
	}
	http.Redirect(w, r, g.loginPath, http.StatusFound)
}

// isLocalPath accepts absolute paths on this host only, so a stored
// redirect target cannot send the visitor elsewhere.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// apiError is the JSON body of error responses.
type apiError struct {
	Error      string  `json:"error"`
	Message    string  `json:"message,omitempty"`
	Path       string  `json:"path,omitempty"`
	Status     int     `json:"status,omitempty"`
	Code       int     `json:"code,omitempty"`
	RetryAfter float64 `json:"retryAfter,omitempty"`
	Global     bool    `json:"global,omitempty"`
}

// WriteError is the default ErrorHandler. Rate limits become 429 with a
// Retry-After header, upstream failures 502 and everything else 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rl   *discord.RateLimitedError
		herr *discord.HTTPError
		derr *discord.DecodeError
	)

	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		writeJSON(w, http.StatusTooManyRequests, apiError{
			Error:      "rate_limited",
			Message:    rl.Message,
			Path:       rl.Path,
			RetryAfter: rl.RetryAfter.Seconds(),
			Global:     rl.Global,
		})
	case errors.As(err, &herr):
		logging.Warn("AuthGate", "Upstream error on %s: %v", r.URL.Path, herr)
		writeJSON(w, http.StatusBadGateway, apiError{
			Error:   "upstream_error",
			Message: herr.Message,
			Path:    herr.Path,
			Status:  herr.StatusCode,
			Code:    herr.Code,
		})
	case errors.As(err, &derr):
		logging.Error("AuthGate", derr, "Malformed upstream response on %s", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, apiError{
			Error:   "bad_upstream_response",
			Message: derr.Error(),
		})
	case errors.Is(err, oauth.ErrTokenRefreshFailed):
		logging.Error("AuthGate", err, "Token refresh failed on %s", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "token_refresh_failed"})
	default:
		logging.Error("AuthGate", err, "Handler for %s failed", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal_error"})
	}
}
