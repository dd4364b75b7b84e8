// Package session provides the per-visitor key-value store used to keep
// OAuth state, tokens and cached profile data between requests.
//
// Handlers receive a *Session through the request context once
// Manager.Middleware is installed:
//
//	sess, ok := session.FromContext(r.Context())
//
// Three backends are available:
//
//   - MemoryBackend keeps sessions in process memory.
//   - RedisBackend stores sessions in Redis so that replicas share them.
//   - CookieBackend signs the whole session into the cookie.
//
// When two requests of the same visitor modify the session concurrently the
// last one to commit wins.
package session
