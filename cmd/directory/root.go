package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/directory/internal/directory/app"
)

var cfg app.Config

var rootCmd = &cobra.Command{
	Use:   "directory",
	Short: "Member directory web application",
	Long: `Member directory lets people register with a password or sign in through
an OAuth2 identity provider, then browse the directory and keep their own
profile up to date.

Configuration is read from the environment (PORT, DATABASE_FILE, CLIENT_ID, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
	// Running the bare binary serves, which keeps the container entrypoint simple.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
