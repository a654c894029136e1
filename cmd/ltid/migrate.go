package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-lti/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := db.Open(cmd.Context(), cfg.Driver(), cfg.DBDSN)
		if err != nil {
			return err
		}
		defer d.Close()
		log.Info().Str("driver", string(cfg.Driver())).Msg("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
