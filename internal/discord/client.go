package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

const (
	DefaultBaseURL   = "https://discord.com/api/v9"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "discord-oauth (https://github.com/giantswarm/discord-oauth)"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Endpoints used by the profile cache.
const (
	PathCurrentUser       = "/users/@me"
	PathCurrentUserGuilds = "/users/@me/guilds"
)

// PathCurrentUserGuildMember is the membership endpoint for one guild.
func PathCurrentUserGuildMember(guildID uint64) string {
	return "/users/@me/guilds/" + FormatSnowflake(guildID) + "/member"
}

// TokenManager is the subset of *oauth.Manager the client needs.
type TokenManager interface {
	Token(sess session.Store) (*oauth.Token, error)
	EnsureFresh(ctx context.Context, sess session.Store, tok *oauth.Token) (*oauth.Token, error)
	DropToken(sess session.Store) error
}

// Client issues authenticated REST calls on behalf of the visitor whose
// session is passed in.
type Client struct {
	baseURL    string
	tokens     TokenManager
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the versioned API root, e.g. https://discord.com/api/v9.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces outgoing requests. Zero or less disables pacing.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates an API client that takes credentials from tokens.
func NewClient(tokens TokenManager, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query issues a GET request to path (relative to the API root) and
// returns the raw JSON body.
func (c *Client) Query(ctx context.Context, sess session.Store, path string) (json.RawMessage, error) {
	return c.Do(ctx, sess, http.MethodGet, path)
}

// Do issues an authenticated request.
//
// Without a token in the session it fails with oauth.ErrNotSignedIn before
// touching the network. An expired token is refreshed first. A 429 becomes
// a *RateLimitedError and is not retried; a 401 drops the session's token;
// any other non-2xx becomes a *HTTPError.
func (c *Client) Do(ctx context.Context, sess session.Store, method, path string) (json.RawMessage, error) {
	tok, err := c.tokens.Token(sess)
	if err != nil {
		return nil, err
	}
	tok, err = c.tokens.EnsureFresh(ctx, sess, tok)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	tok.OAuth2().SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	logging.Debug("DiscordAPI", "%s %s -> %d (%s) session=%s",
		method, path, resp.StatusCode, logging.Since(start), logging.TruncateSessionID(sess.ID()))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rl := parseRateLimit(path, resp.Header, body)
		logging.Warn("DiscordAPI", "Rate limited on %s, retry after %s", path, rl.RetryAfter)
		return nil, rl
	case resp.StatusCode == http.StatusUnauthorized:
		logging.Info("DiscordAPI", "Token rejected on %s, dropping it for session=%s", path, logging.TruncateSessionID(sess.ID()))
		if err := c.tokens.DropToken(sess); err != nil {
			return nil, err
		}
		return nil, parseHTTPError(path, resp.StatusCode, body)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, parseHTTPError(path, resp.StatusCode, body)
	}

	return json.RawMessage(body), nil
}

type apiErrorBody struct {
	Message    string   `json:"message"`
	Code       int      `json:"code"`
	RetryAfter *float64 `json:"retry_after"`
	Global     bool     `json:"global"`
}

func parseRateLimit(path string, header http.Header, body []byte) *RateLimitedError {
	rl := &RateLimitedError{Path: path}

	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		rl.Message = parsed.Message
		rl.Global = parsed.Global
		if parsed.RetryAfter != nil {
			rl.RetryAfter = time.Duration(*parsed.RetryAfter * float64(time.Second))
			return rl
		}
	}

	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			rl.RetryAfter = time.Duration(secs * float64(time.Second))
		}
	}
	if header.Get("X-RateLimit-Global") == "true" {
		rl.Global = true
	}
	return rl
}

func parseHTTPError(path string, status int, body []byte) *HTTPError {
	herr := &HTTPError{Path: path, StatusCode: status}
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		herr.Message = parsed.Message
		herr.Code = parsed.Code
	}
	return herr
}
