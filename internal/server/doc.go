// Package server exposes the Discord sign-in flow over HTTP.
//
// It wires four kinds of entry points onto one mux:
//
//   - the login entry point, which redirects the browser to Discord's
//     authorization page
//   - the callback, which completes the code exchange and sends the visitor
//     back to where they started
//   - logout (POST only), which clears the session
//   - protected routes wrapped by a Gate
//
// A Gate runs its handler only for sessions holding a token. Visitors
// without one, and handlers that find out mid-request that the token is no
// longer usable (any error matching oauth.ErrNotSignedIn), are redirected to
// the login entry point instead of seeing an error.
//
// Every request runs inside the session middleware, so handlers reach the
// visitor's session with session.FromContext.
package server
