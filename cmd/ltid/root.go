package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-lti/internal/config"
	"github.com/mind-engage/mindengage-lti/internal/logging"
)

// cfg is filled from the environment before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "ltid",
	Short: "LTI 1.x tool provider: launch verification, sessions and grade passback",
	Long: `ltid verifies LTI 1.0/1.1 launches signed by a tool consumer (an LMS),
binds them to a browser session and posts grades back to the consumer.

Configuration is read from LTI_* environment variables; see serve --help.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
			cfg.LogLevel = f.Value.String()
		}
		if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
			cfg.LogFormat = f.Value.String()
		}
		return logging.Init(cfg.LogLevel, cfg.LogFormat)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error); overrides LTI_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json); overrides LTI_LOG_FORMAT")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
