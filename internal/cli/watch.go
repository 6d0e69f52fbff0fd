package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/realtime"
)

func addFeedFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", "http://localhost:8787", "API base URL")
	cmd.Flags().String("token", os.Getenv("MC_TOKEN"), "Bearer token (defaults to MC_TOKEN)")
	cmd.Flags().String("team", "", "Team to follow (defaults to the token's team)")
}

// WatchCmd returns the watch command
func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a team's entities over the realtime feed",
		RunE:  runWatch,
	}
	addFeedFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	apiBase, _ := cmd.Flags().GetString("api")
	token, _ := cmd.Flags().GetString("token")
	team, _ := cmd.Flags().GetString("team")
	endpoint, err := feedURL(apiBase, team)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := realtime.NewClient(endpoint, bearerHeader(token), realtime.NewReconciler(nil), nil)
	client.OnUpdate = func(r *realtime.Reconciler, msg realtime.Message) {
		switch msg.Type {
		case realtime.MessageSnapshot:
			fmt.Printf("%s %d entities\n", color.New(color.FgCyan).Sprint("SNAPSHOT"), len(msg.Entities))
			for _, e := range r.Entities() {
				printEntity(e)
			}
		case realtime.MessageDelta:
			d := msg.Delta
			if d.Deleted {
				fmt.Printf("%s %s rev=%d\n", color.New(color.FgRed).Sprint("DELETED"), d.EntityID, d.Revision)
				return
			}
			fmt.Printf("%s %s rev=%d [%s]\n", color.New(color.FgYellow).Sprint("DELTA"), d.EntityID, d.Revision, strings.Join(d.Changed, ","))
			if e, ok := r.Entity(d.EntityID); ok {
				printEntity(e)
			}
		}
	}

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printEntity(e realtime.EntityState) {
	status := color.New(color.FgGreen).Sprint("open")
	if e.Completed {
		status = color.New(color.FgHiBlack).Sprint("done")
	}
	fmt.Printf("  %-24s %-10s %-8s %4dpt (%.0f,%.0f) %s  %s\n",
		e.ID, e.OwnerID, e.Priority, e.Points, e.Position.X, e.Position.Y, status, e.Name)
}
