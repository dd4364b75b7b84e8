// Package app provides application bootstrap and lifecycle management for
// discord-oauth.
//
// # Architecture Overview
//
// The app package is the composition root. It has four parts:
//
//  1. **Configuration (`config.go`)**: runtime options coming from the
//     command line (debug flag, config path, port override)
//  2. **Bootstrap (`bootstrap.go`)**: loads and validates the YAML/env
//     configuration and initializes logging
//  3. **Services (`services.go`)**: builds the components in dependency
//     order
//  4. **Modes (`modes.go`)**: runs the HTTP server until interrupted
//
// # Component Graph
//
//	session.Backend (memory | cookie | redis)
//	        │
//	session.Manager ──────────────┐
//	                              │
//	oauth.Manager (token manager) │
//	        │                     │
//	discord.Client (API client)   │
//	        │                     │
//	profile.Cache                 │
//	        │                     │
//	server.Server ◄───────────────┘
//
// # Lifecycle
//
//	cfg := app.NewConfig(debug, configPath, port)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run blocks until the context is cancelled or the process receives SIGINT
// or SIGTERM. Shutdown waits up to ten seconds for in-flight requests and
// then releases the session backend (stopping the memory cleanup loop or
// closing the redis client).
//
// # systemd
//
// When started with Type=notify, the server reports READY=1 after the
// listener is open and STOPPING=1 when shutdown begins. Outside systemd the
// notifications are no-ops.
package app
