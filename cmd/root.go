package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/giantswarm/discord-oauth/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalidConfig indicates the configuration could not be loaded or is invalid.
	ExitCodeInvalidConfig = 2
)

// configPath is the configuration file used by every command.
// Empty means ~/.config/discord-oauth/config.yaml.
var configPath string

// envFile is an optional dotenv file. Without it, ./.env is loaded if present.
var envFile string

// rootCmd represents the base command for the discord-oauth application.
var rootCmd = &cobra.Command{
	Use:   "discord-oauth",
	Short: "Sign visitors in with Discord and serve their profile",
	Long: `discord-oauth runs the server side of Discord's OAuth2 authorization code
flow. Visitors sign in through Discord, the resulting tokens are kept in their
session and refreshed as needed, and their profile, guild list and guild
memberships are served through a short-lived per-session cache.

Configuration is read from a YAML file and DISCORD_OAUTH_* environment
variables, which may also be supplied through a .env file.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "discord-oauth version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if isConfigError(err) {
		return ExitCodeInvalidConfig
	}
	return ExitCodeError
}

func isConfigError(err error) bool {
	var (
		validation config.ValidationErrors
		single     *config.ConfigurationError
		collection config.ConfigurationErrorCollection
	)
	return errors.As(err, &validation) || errors.As(err, &single) || errors.As(err, &collection)
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. An empty path loads ./.env when it exists.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/discord-oauth/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading configuration (default ./.env if present)")
}
