package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pbpnudge",
	Short: "pbpnudge - inactivity watcher and transcript archiver for play-by-post Telegram topics",
	Long: `pbpnudge watches the play-by-post topics of a Telegram forum group and
nudges the matching chat topic when a campaign has gone quiet:
- check fetches new messages, tracks per-topic activity, and sends alerts
  for topics silent longer than the configured threshold
- import backfills per-campaign transcript files from a Telegram Desktop
  JSON export, skipping everything already imported

State between check runs is kept in a GitHub Gist (or a local file).`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file with group id and topic pairs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadDotEnv picks up credentials from a local .env file when present.
// Absence is fine; production runs get them from the real environment.
func loadDotEnv() {
	_ = godotenv.Load()
}
