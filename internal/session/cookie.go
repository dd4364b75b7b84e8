package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// maxCookieBytes is the largest cookie value the backend will emit.
const maxCookieBytes = 4000

type cookieClaims struct {
	SessionID string                     `json:"sid"`
	Values    map[string]json.RawMessage `json:"vals,omitempty"`
	jwt.RegisteredClaims
}

// CookieBackend stores the whole session in the cookie as an HS256-signed
// JWT. Values are tamper-evident but not encrypted: the visitor can read
// their own session, including their own tokens.
type CookieBackend struct {
	secret []byte
	now    func() time.Time
}

// NewCookieBackend returns a cookie backend signing with secret.
func NewCookieBackend(secret []byte) *CookieBackend {
	return &CookieBackend{secret: secret, now: time.Now}
}

// Load implements Backend. A cookie with a bad signature, an unexpected
// algorithm or a past expiry is treated as absent.
func (b *CookieBackend) Load(_ context.Context, cookieValue string) (string, map[string]json.RawMessage, bool, error) {
	claims := &cookieClaims{}
	_, err := jwt.ParseWithClaims(cookieValue, claims, func(token *jwt.Token) (interface{}, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		logging.Debug("Session", "Rejected session cookie: %v", err)
		return "", nil, false, nil
	}
	if claims.SessionID == "" {
		return "", nil, false, nil
	}
	return claims.SessionID, claims.Values, true, nil
}

// Save implements Backend.
func (b *CookieBackend) Save(_ context.Context, id string, values map[string]json.RawMessage, maxAge time.Duration) (string, error) {
	now := b.now()
	claims := cookieClaims{
		SessionID: id,
		Values:    values,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	if len(signed) > maxCookieBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrCookieTooLarge, len(signed))
	}
	return signed, nil
}

// Destroy implements Backend. There is nothing to delete server-side; the
// middleware expires the cookie.
func (b *CookieBackend) Destroy(context.Context, string) error {
	return nil
}
