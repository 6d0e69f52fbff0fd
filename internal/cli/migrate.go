package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/config"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			dataStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dataStore.DB().Close()
			fmt.Printf("%s schema up to date (%s)\n", color.New(color.FgGreen).Sprint("✓"), dataStore.Dialect())
			return nil
		},
	}
}
