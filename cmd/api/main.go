package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"missioncontrol/api/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mc",
		Short: "Mission Control event ingestion API",
		Long: `mc ingests tracker webhooks exactly once, places entities on the team
map, credits completions to the point ledger and streams changes to clients.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.AuditCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.EditCmd())
	rootCmd.AddCommand(cli.JournalCmd())
	rootCmd.AddCommand(cli.ReindexCmd())
	rootCmd.AddCommand(cli.ZonesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
