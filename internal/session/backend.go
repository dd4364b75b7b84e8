package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCookieTooLarge is returned by backends that embed the session in the
// cookie when the encoded value would exceed what browsers accept.
var ErrCookieTooLarge = errors.New("session: encoded cookie exceeds size limit")

// Backend persists session values between requests. The cookie value is
// opaque to the middleware: server-side backends return the session id,
// the cookie backend returns the signed session itself.
type Backend interface {
	// Load resolves a cookie value. found is false when the session does not
	// exist, has expired or cannot be verified.
	Load(ctx context.Context, cookieValue string) (id string, values map[string]json.RawMessage, found bool, err error)
	// Save persists values for id and returns the cookie value to send.
	Save(ctx context.Context, id string, values map[string]json.RawMessage, maxAge time.Duration) (cookieValue string, err error)
	// Destroy removes the session. Destroying an unknown id is not an error.
	Destroy(ctx context.Context, id string) error
}
