package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/giantswarm/discord-oauth/internal/oauth"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrHTTP        = errors.New("api request failed")
	ErrDecode      = errors.New("malformed api response")
)

// RateLimitedError is returned for a 429 response. The request is not
// retried; RetryAfter tells the caller how long to wait.
type RateLimitedError struct {
	Path       string
	RetryAfter time.Duration
	Global     bool
	Message    string
}

func (e *RateLimitedError) Error() string {
	scope := ""
	if e.Global {
		scope = " (global)"
	}
	return fmt.Sprintf("rate limited on %s%s, retry after %s", e.Path, scope, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// HTTPError is any other non-2xx response. A 401 also matches
// oauth.ErrNotSignedIn, since the token it was sent with is unusable.
type HTTPError struct {
	Path       string
	StatusCode int
	Code       int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d: %s (code %d)", e.Path, e.StatusCode, msg, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.StatusCode, msg)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return true
	case oauth.ErrNotSignedIn:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// DecodeError reports a response that does not match the expected schema.
type DecodeError struct {
	Resource string
	Field    string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decoding %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("decoding %s: field %q: %v", e.Resource, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
