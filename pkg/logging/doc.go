// Package logging provides subsystem-tagged structured logging for
// discord-oauth, built on the standard library's log/slog.
//
// Every entry carries a subsystem attribute (for example "OAuth",
// "DiscordAPI", "ProfileCache", "AuthGate" or "Session") and, for errors, an
// error attribute.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Server", "Listening on %s", addr)
//	logging.Debug("ProfileCache", "Cache miss for session=%s", logging.TruncateSessionID(id))
//	logging.Error("OAuth", err, "Token exchange failed")
//
// Session identifiers must be passed through TruncateSessionID before being
// logged. Access and refresh tokens are never logged.
package logging
