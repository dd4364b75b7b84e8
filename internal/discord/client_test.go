package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/session"
)

// fakeAPI records every request path in arrival order.
type fakeAPI struct {
	mu       sync.Mutex
	requests []string
	headers  []http.Header
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	f.headers = append(f.headers, r.Header.Clone())
	h := f.handler
	f.mu.Unlock()
	h(w, r)
}

func (f *fakeAPI) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeAPI) header(i int) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[i]
}

func newAPIServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedInSession(t *testing.T, tok *oauth.Token) *session.Session {
	t.Helper()
	sess := session.New("session-1", nil)
	require.NoError(t, sess.Set(oauth.KeyToken, tok))
	return sess
}

func newTestClient(srv *httptest.Server, opts ...ClientOption) (*Client, *oauth.Manager) {
	mgr := oauth.NewManager(oauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      srv.URL + "/oauth2/authorize",
		TokenURL:     srv.URL + "/oauth2/token",
	}, oauth.Options{HTTPClient: srv.Client()})

	opts = append([]ClientOption{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return NewClient(mgr, opts...), mgr
}

func TestQuery_NoTokenMakesNoRequest(t *testing.T) {
	api, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	c, _ := newTestClient(srv)

	_, err := c.Query(context.Background(), session.New("anon", nil), PathCurrentUser)
	assert.ErrorIs(t, err, oauth.ErrNotSignedIn)
	assert.Empty(t, api.paths())
}

func TestQuery_SendsBearerToken(t *testing.T) {
	api, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "1", "username": "nelly"})
	})
	c, _ := newTestClient(srv, WithUserAgent("test-agent"))
	sess := signedInSession(t, &oauth.Token{AccessToken: "access-1", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)})

	raw, err := c.Query(context.Background(), sess, PathCurrentUser)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","username":"nelly"}`, string(raw))

	assert.Equal(t, []string{"/users/@me"}, api.paths())
	assert.Equal(t, "Bearer access-1", api.header(0).Get("Authorization"))
	assert.Equal(t, "test-agent", api.header(0).Get("User-Agent"))
}

func TestQuery_RefreshesExpiredTokenFirst(t *testing.T) {
	api, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "access-2",
				"refresh_token": "refresh-2",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"id": "1", "username": "nelly"})
		}
	})
	c, mgr := newTestClient(srv)
	sess := signedInSession(t, &oauth.Token{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := c.Query(context.Background(), sess, PathCurrentUser)
	require.NoError(t, err)

	assert.Equal(t, []string{"/oauth2/token", "/users/@me"}, api.paths())
	assert.Equal(t, "Bearer access-2", api.header(1).Get("Authorization"))

	stored, err := mgr.Token(sess)
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
}

func TestQuery_UnexpiredTokenIsNotRefreshed(t *testing.T) {
	api, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	c, _ := newTestClient(srv)
	sess := signedInSession(t, &oauth.Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})

	_, err := c.Query(context.Background(), sess, PathCurrentUserGuilds)
	require.NoError(t, err)
	assert.Equal(t, []string{"/users/@me/guilds"}, api.paths())
}

func TestQuery_RateLimited(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(w http.ResponseWriter, r *http.Request)
		wantAfter  time.Duration
		wantGlobal bool
	}{
		{
			name: "body retry_after",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "You are being rate limited.", "retry_after": 5, "global": false})
			},
			wantAfter: 5 * time.Second,
		},
		{
			name: "fractional global",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"retry_after": 0.25, "global": true})
			},
			wantAfter:  250 * time.Millisecond,
			wantGlobal: true,
		},
		{
			name: "header fallback",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantAfter: 3 * time.Second,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api, srv := newAPIServer(t, tc.handler)
			c, _ := newTestClient(srv)
			sess := signedInSession(t, &oauth.Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})

			_, err := c.Query(context.Background(), sess, PathCurrentUserGuilds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRateLimited)

			var rl *RateLimitedError
			require.True(t, errors.As(err, &rl))
			assert.Equal(t, tc.wantAfter, rl.RetryAfter)
			assert.Equal(t, "/users/@me/guilds", rl.Path)
			assert.Equal(t, tc.wantGlobal, rl.Global)
			assert.Len(t, api.paths(), 1, "429 is not retried")
		})
	}
}

func TestQuery_UnauthorizedDropsToken(t *testing.T) {
	_, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "401: Unauthorized", "code": 0})
	})
	c, mgr := newTestClient(srv)
	sess := signedInSession(t, &oauth.Token{AccessToken: "revoked", ExpiresAt: time.Now().Add(time.Hour)})

	_, err := c.Query(context.Background(), sess, PathCurrentUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrNotSignedIn)
	assert.ErrorIs(t, err, ErrHTTP)
	assert.False(t, mgr.SignedIn(sess))
}

func TestQuery_HTTPError(t *testing.T) {
	_, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Missing Access", "code": 50001})
	})
	c, mgr := newTestClient(srv)
	sess := signedInSession(t, &oauth.Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})

	_, err := c.Query(context.Background(), sess, PathCurrentUserGuildMember(1234))
	require.Error(t, err)

	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusForbidden, herr.StatusCode)
	assert.Equal(t, 50001, herr.Code)
	assert.Equal(t, "Missing Access", herr.Message)
	assert.Equal(t, "/users/@me/guilds/1234/member", herr.Path)
	assert.NotErrorIs(t, err, oauth.ErrNotSignedIn)
	assert.True(t, mgr.SignedIn(sess), "only a 401 drops the token")
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient(nil, WithRateLimit(0))
	assert.Nil(t, c.limiter)

	c = NewClient(nil, WithRateLimit(0.5))
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient(nil, WithRateLimit(10))
	assert.Equal(t, 10, c.limiter.Burst())
}

func TestQuery_RateLimitWaitHonoursContext(t *testing.T) {
	api, srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	c, _ := newTestClient(srv, WithRateLimit(0.001))
	sess := signedInSession(t, &oauth.Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})

	_, err := c.Query(context.Background(), sess, PathCurrentUser)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Query(ctx, sess, PathCurrentUser)
	assert.Error(t, err)
	assert.Len(t, api.paths(), 1)
}
