package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/spatial"
	"missioncontrol/api/internal/zone"
)

// ZonesCmd returns the zones command
func ZonesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones [owner...]",
		Short: "Show the zone table and check owners against it",
		Long: `Print every owner zone from MC_ZONES_FILE (or the built-in table) with its
tracker identity and the allocator geometry. Owners given as arguments are
checked; unknown owners are placed around mission control and the command
exits non-zero.

Usage:
  mc zones
  mc zones alex "Jean Dupont"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			dir := zone.Default()
			if strings.TrimSpace(cfg.ZonesFile) != "" {
				var err error
				if dir, err = zone.Load(cfg.ZonesFile); err != nil {
					return fmt.Errorf("load zones: %w", err)
				}
			}
			alloc := spatial.New(dir, spatial.DefaultParams(), cfg.AllocatorSeed)
			unknown := describeZones(os.Stdout, dir, alloc, args)
			if len(unknown) > 0 {
				return fmt.Errorf("%d owner(s) without a zone: %s", len(unknown), strings.Join(unknown, ", "))
			}
			return nil
		},
	}
	return cmd
}

// describeZones writes the zone table and returns the checked owners that
// have no zone.
func describeZones(w io.Writer, dir *zone.Directory, alloc *spatial.Allocator, check []string) []string {
	for _, owner := range dir.Owners() {
		base := dir.ZoneOf(owner)
		tracker, ok := dir.TrackerUserID(owner)
		if !ok {
			tracker = color.New(color.FgYellow).Sprint("(no tracker user)")
		}
		fmt.Fprintf(w, "  %-12s (%.0f,%.0f) %s\n", owner, base.X, base.Y, tracker)
	}
	p := alloc.Params()
	fmt.Fprintf(w, "  mission control (%.0f,%.0f), unassigned (%.0f,%.0f)\n",
		dir.Fallback().X, dir.Fallback().Y, dir.Unassigned().X, dir.Unassigned().Y)
	fmt.Fprintf(w, "  separation %.0f, %d probes, fallback radius %.0f\n", p.MinSeparation, p.Attempts(), p.FallbackRadius())

	var unknown []string
	for _, raw := range check {
		owner := zone.Normalize(raw)
		if dir.Known(owner) {
			fmt.Fprintf(w, "%s %s\n", color.New(color.FgGreen).Sprint("✓"), owner)
			continue
		}
		fmt.Fprintf(w, "%s %s (mission control)\n", color.New(color.FgRed).Sprint("UNKNOWN"), owner)
		unknown = append(unknown, string(owner))
	}
	return unknown
}
