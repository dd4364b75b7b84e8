package oauth

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// Session keys owned by this package.
const (
	KeyAuthState = "oauth2_state"
	KeyToken     = "oauth2_token"
	// KeyNext holds the URL a visitor asked for before being sent to login.
	KeyNext = "oauth2_next"
)

// Token is the access/refresh token pair bound to a visitor's session.
//
// Token is stored in the session as JSON, so the JSON encoding carries the
// real values. String, GoString and LogValue redact them.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the token can no longer be used at now. A token
// without an expiry never expires.
func (t *Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// OAuth2 converts the token for use with golang.org/x/oauth2, for example
// to set the Authorization header of an outgoing request.
func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

func tokenFromOAuth2(t *oauth2.Token) *Token {
	tok := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		tok.Scope = scope
	}
	return tok
}

// String implements fmt.Stringer without exposing credentials.
func (t *Token) String() string {
	return fmt.Sprintf("Token{type=%s scope=%q expires=%s access=[REDACTED] refresh=%s}",
		t.TokenType, t.Scope, t.ExpiresAt.Format(time.RFC3339), redactedIfSet(t.RefreshToken))
}

// GoString implements fmt.GoStringer for %#v.
func (t *Token) GoString() string {
	return "oauth.Token{[REDACTED]}"
}

// LogValue implements slog.LogValuer.
func (t *Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", t.TokenType),
		slog.String("scope", t.Scope),
		slog.Time("expires_at", t.ExpiresAt),
		slog.Bool("refreshable", t.RefreshToken != ""),
	)
}

func redactedIfSet(s string) string {
	if s == "" {
		return "none"
	}
	return "[REDACTED]"
}

// AuthState is the pending-login record created by AuthorizationURL and
// consumed by the next HandleCallback.
type AuthState struct {
	State    string    `json:"state"`
	Scopes   []string  `json:"scopes"`
	IssuedAt time.Time `json:"issued_at"`
	// Verifier is the PKCE code verifier, set when PKCE is enabled.
	Verifier string `json:"verifier,omitempty"`
}
