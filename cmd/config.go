package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/discord-oauth/internal/app"
	"github.com/giantswarm/discord-oauth/internal/config"
	"github.com/giantswarm/discord-oauth/internal/formatting"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// configOutput selects the output format of 'config show'.
var configOutput string

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Long: `Prints the configuration after defaults, the config file and DISCORD_OAUTH_*
environment variables have been applied. Secrets are never printed.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
	showCmd.Flags().StringVarP(&configOutput, "output", "o", string(formatting.FormatTable), "Output format (table, json, yaml)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report every problem",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	}

	configCmd.AddCommand(showCmd, validateCmd)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	f, err := formatting.New(formatting.Options{
		Format: formatting.OutputFormat(configOutput),
		Color:  os.Getenv("NO_COLOR") == "",
	})
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), configFields(cfg))
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

	if _, err := app.LoadSettings(&app.Config{ConfigPath: configPath}); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", text.FgRed.Sprint("Configuration is invalid:"))
		if detailed, ok := err.(interface{ DetailedError() string }); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), detailed.DetailedError())
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text.FgGreen.Sprint("Configuration is valid"))
	return nil
}

// configFields lists the settings in display order.
func configFields(c config.Config) []formatting.Field {
	return []formatting.Field{
		{Key: "debug", Value: c.Debug},
		{Key: "logFormat", Value: defaultString(c.LogFormat, "text")},

		{Section: "server", Key: "address", Value: c.Server.Addr()},
		{Section: "server", Key: "loginPath", Value: c.Server.LoginPath},
		{Section: "server", Key: "callbackPath", Value: c.Server.CallbackPath},
		{Section: "server", Key: "logoutPath", Value: c.Server.LogoutPath},
		{Section: "server", Key: "postLoginRedirect", Value: c.Server.PostLoginRedirect},
		{Section: "server", Key: "postLogoutRedirect", Value: c.Server.PostLogoutRedirect},

		{Section: "oauth", Key: "clientId", Value: defaultString(c.OAuth.ClientID, "(not set)")},
		{Section: "oauth", Key: "clientSecret", Value: formatting.MaskSecret(c.OAuth.ClientSecret)},
		{Section: "oauth", Key: "redirectUri", Value: c.OAuth.RedirectURI},
		{Section: "oauth", Key: "scopes", Value: strings.Join(c.OAuth.Scopes, " ")},
		{Section: "oauth", Key: "prompt", Value: defaultString(c.OAuth.Prompt, "(provider default)")},
		{Section: "oauth", Key: "pkce", Value: c.OAuth.PKCE},
		{Section: "oauth", Key: "stateTtl", Value: c.OAuth.StateTTL().String()},

		{Section: "api", Key: "baseUrl", Value: c.API.VersionedBaseURL()},
		{Section: "api", Key: "authorizeUrl", Value: c.API.AuthorizeURL()},
		{Section: "api", Key: "tokenUrl", Value: c.API.TokenURL()},
		{Section: "api", Key: "requestsPerSecond", Value: c.API.RequestsPerSecond},
		{Section: "api", Key: "timeout", Value: c.API.Timeout().String()},

		{Section: "cache", Key: "ttl", Value: c.Cache.TTL().String()},

		{Section: "session", Key: "backend", Value: c.Session.Backend},
		{Section: "session", Key: "cookieName", Value: c.Session.CookieName},
		{Section: "session", Key: "secret", Value: formatting.MaskSecret(c.Session.Secret)},
		{Section: "session", Key: "maxAge", Value: c.Session.MaxAge().String()},
		{Section: "session", Key: "secure", Value: c.Session.Secure},
		{Section: "session", Key: "redisAddr", Value: defaultString(c.Session.Redis.Addr, "(not set)")},
		{Section: "session", Key: "redisPassword", Value: formatting.MaskSecret(c.Session.Redis.Password)},
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
