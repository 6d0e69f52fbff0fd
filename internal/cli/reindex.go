package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/search"
)

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Push a team's entities to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if strings.TrimSpace(cfg.MeiliURL) == "" {
				return fmt.Errorf("MEILI_URL is not set")
			}
			team, _ := cmd.Flags().GetString("team")
			if team == "" {
				team = cfg.DefaultTeamID
			}
			dataStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dataStore.DB().Close()

			meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			defer meiliClient.Close()
			if !meiliClient.Healthy() {
				return fmt.Errorf("meilisearch unavailable at %s", cfg.MeiliURL)
			}
			search.NewService(meiliClient, dataStore).ReindexTeam(cmd.Context(), team)
			fmt.Printf("%s reindexed team %s\n", color.New(color.FgGreen).Sprint("✓"), team)
			return nil
		},
	}
	cmd.Flags().String("team", "", "Team id (defaults to MC_DEFAULT_TEAM)")
	return cmd
}
