package session

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	// Path defaults to "/".
	Path string
	// SaveErrorHandler writes the response sent instead of the handler's
	// when a modified session cannot be saved. Defaults to a plain 500.
	SaveErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Manager attaches a Session to every request and persists it through a
// Backend.
type Manager struct {
	backend Backend
	opts    Options
	newID   func() string
}

// NewManager creates a session manager.
func NewManager(backend Backend, opts Options) *Manager {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SaveErrorHandler == nil {
		opts.SaveErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "session could not be saved", http.StatusInternalServerError)
		}
	}
	return &Manager{
		backend: backend,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// Middleware loads the visitor's session (or starts an empty one), makes it
// available through FromContext and commits it before the response headers
// are written. Sessions that were never modified are not persisted and get
// no cookie.
//
// If a modified session cannot be saved, the handler's response is dropped
// and SaveErrorHandler answers instead, so a visitor is never told an action
// succeeded when its session change was lost.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, existed := m.load(r)

		cw := &committingWriter{ResponseWriter: w}
		cw.commit = func() error { return m.commit(cw.ResponseWriter, r, sess, existed) }
		cw.fail = func(err error) {
			h := w.Header()
			for k := range h {
				delete(h, k)
			}
			m.opts.SaveErrorHandler(w, r, err)
		}

		next.ServeHTTP(cw, r.WithContext(NewContext(r.Context(), sess)))

		// Handlers that write nothing still get their session saved.
		cw.commitOnce()
	})
}

func (m *Manager) load(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return New(m.newID(), nil), false
	}

	id, values, found, err := m.backend.Load(r.Context(), cookie.Value)
	if err != nil {
		logging.Error("Session", err, "Failed to load session, starting a new one")
		return New(m.newID(), nil), false
	}
	if !found {
		logging.Debug("Session", "Session cookie did not resolve, starting a new one")
		return New(m.newID(), nil), false
	}
	return New(id, values), true
}

func (m *Manager) commit(w http.ResponseWriter, r *http.Request, sess *Session, existed bool) error {
	values, dirty, cleared := sess.snapshot()
	if !dirty {
		return nil
	}
	ctx := r.Context()

	if cleared {
		if existed {
			if err := m.backend.Destroy(ctx, sess.ID()); err != nil {
				logging.Error("Session", err, "Failed to destroy session=%s", logging.TruncateSessionID(sess.ID()))
			}
		}
		sess.setID(m.newID())
		if len(values) == 0 {
			if existed {
				m.expireCookie(w)
			}
			return nil
		}
	}

	cookieValue, err := m.backend.Save(ctx, sess.ID(), values, m.opts.MaxAge)
	if err != nil {
		logging.Error("Session", err, "Failed to save session=%s", logging.TruncateSessionID(sess.ID()))
		return fmt.Errorf("failed to save session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    cookieValue,
		Path:     m.opts.Path,
		MaxAge:   int(m.opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	logging.Debug("Session", "Committed session=%s (%d keys)", logging.TruncateSessionID(sess.ID()), len(values))
	return nil
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     m.opts.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// committingWriter runs commit right before the first header or body byte
// goes out, which is the last moment a Set-Cookie header can be added. When
// commit fails, fail writes the response and everything the handler writes
// afterwards is discarded.
type committingWriter struct {
	http.ResponseWriter
	commit func() error
	fail   func(err error)
	once   sync.Once
	failed bool
}

func (w *committingWriter) commitOnce() {
	w.once.Do(func() {
		if err := w.commit(); err != nil {
			w.failed = true
			w.fail(err)
		}
	})
}

func (w *committingWriter) WriteHeader(status int) {
	w.commitOnce()
	if w.failed {
		return
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *committingWriter) Write(b []byte) (int, error) {
	w.commitOnce()
	if w.failed {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *committingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
