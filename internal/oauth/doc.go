// Package oauth implements the server side of the OAuth2 authorization code
// flow against Discord and the lifecycle of the resulting token.
//
// A Manager is shared by all requests. Per-visitor state (the pending
// AuthState and the Token) lives in the session.Store handed to each call:
//
//	authURL, _, err := mgr.AuthorizationURL(sess, []string{"identify", "guilds"})
//	// redirect to authURL, then on the callback route:
//	tok, err := mgr.HandleCallback(ctx, sess, r.URL)
//	// before each API call:
//	tok, err = mgr.EnsureFresh(ctx, sess, tok)
//
// Errors are classified through the sentinels in errors.go; use errors.Is
// to test for ErrNotSignedIn, ErrCSRFMismatch, ErrAccessDenied and friends,
// and errors.As for the details carried by *ProviderError and *TokenError.
package oauth
