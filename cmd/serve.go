package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/discord-oauth/internal/app"
)

// serveDebug enables verbose logging of every OAuth step and cache decision.
var serveDebug bool

// servePort overrides server.port from the configuration.
var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sign-in server",
	Long: `Starts the HTTP server exposing the login, callback and logout entry points
together with the example protected routes:

  GET  /me                          HTML greeting for the signed-in user
  GET  /api/me                      the signed-in user
  GET  /api/guilds                  their guilds
  GET  /api/guilds/{id}             one guild, 404 if not a member
  GET  /api/guilds/{id}/member      their membership in that guild
  GET  /healthz                     liveness check

Visitors without a session token are redirected to the login entry point and
returned to the page they asked for once signed in.

The server stops gracefully on SIGINT or SIGTERM and supports systemd's
Type=notify readiness protocol.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, configPath, servePort)
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
}
