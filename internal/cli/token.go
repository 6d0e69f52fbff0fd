package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"missioncontrol/api/internal/auth"
	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/rbac"
)

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with MC_TOKEN_SECRET",
		Long: `Issue a bearer token for the API and the realtime feed.

Usage:
  mc token --sub alex --role agent
  mc token --sub ops --role admin --team team_a --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			sub, _ := cmd.Flags().GetString("sub")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			team, _ := cmd.Flags().GetString("team")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if sub == "" {
				return fmt.Errorf("--sub is required")
			}
			if name == "" {
				name = sub
			}
			if team == "" {
				team = cfg.DefaultTeamID
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			token, claims, err := auth.Issue([]byte(cfg.TokenSecret), sub, name, string(rbac.Normalize(role)), team, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(cmd.ErrOrStderr(), "role=%s team=%s expires=%s\n", claims.Role, claims.Team, time.Unix(claims.Exp, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Subject (principal id)")
	cmd.Flags().String("name", "", "Display name (defaults to --sub)")
	cmd.Flags().String("role", "viewer", "Role: viewer, agent or admin")
	cmd.Flags().String("team", "", "Team id (defaults to MC_DEFAULT_TEAM)")
	cmd.Flags().Duration("ttl", 0, "Lifetime (defaults to MC_TOKEN_TTL_SECONDS)")
	return cmd
}
