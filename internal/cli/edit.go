package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/realtime"
)

// EditCmd returns the edit command
func EditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <entity-id> field=value...",
		Short: "Edit an entity optimistically through the realtime feed",
		Long: `Apply a local edit on top of the live feed, write it back to the API and
wait for the outcome. A rejected write restores the server values.

Editable fields: name, description, kind, priority, points.

Usage:
  mc edit ent_123 name="Fix login" priority=high
  mc edit ent_123 points=80`,
		Args: cobra.MinimumNArgs(2),
		RunE: runEdit,
	}
	addFeedFlags(cmd)
	cmd.Flags().Duration("timeout", 15*time.Second, "Give up after this long")
	return cmd
}

func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		if field == realtime.FieldPoints {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("points must be an integer: %q", value)
			}
			fields[field] = n
			continue
		}
		fields[field] = value
	}
	return fields, nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	entityID := args[0]
	fields, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	apiBase, _ := cmd.Flags().GetString("api")
	token, _ := cmd.Flags().GetString("token")
	team, _ := cmd.Flags().GetString("team")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	endpoint, err := feedURL(apiBase, team)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	rec := realtime.NewReconciler(realtime.HTTPWriteBack(apiBase, token, nil))
	client := realtime.NewClient(endpoint, bearerHeader(token), rec, nil)

	synced := make(chan struct{})
	settled := make(chan error, 1)
	client.OnUpdate = func(_ *realtime.Reconciler, msg realtime.Message) {
		if msg.Type == realtime.MessageSnapshot {
			select {
			case <-synced:
			default:
				close(synced)
			}
		}
	}
	client.OnSettle = func(id string, err error) {
		if id != entityID {
			return
		}
		select {
		case settled <- err:
		default:
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-synced:
	case err := <-runErr:
		return fmt.Errorf("feed: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("waiting for snapshot: %w", ctx.Err())
	}

	var editErr error
	if err := client.Do(ctx, func(r *realtime.Reconciler) {
		for field, value := range fields {
			if editErr = r.Edit(entityID, field, value); editErr != nil {
				_ = r.Cancel(entityID)
				return
			}
		}
		editErr = r.Commit(ctx, entityID)
	}); err != nil {
		return err
	}
	if editErr != nil {
		return editErr
	}

	select {
	case err := <-settled:
		if err != nil {
			fmt.Printf("%s %s: %v\n", color.New(color.FgRed).Sprint("REJECTED"), entityID, err)
			return err
		}
	case <-ctx.Done():
		return fmt.Errorf("waiting for write-back: %w", ctx.Err())
	}

	var final realtime.EntityState
	_ = client.Do(ctx, func(r *realtime.Reconciler) { final, _ = r.Entity(entityID) })
	fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("SAVED"), entityID)
	printEntity(final)
	return nil
}
