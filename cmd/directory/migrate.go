package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/directory/internal/directory/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, dirty, err := app.Migrate(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t) in %s\n", version, dirty, cfg.DatabaseFile)
		return nil
	},
}
