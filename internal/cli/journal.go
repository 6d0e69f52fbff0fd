package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/journal"
)

// JournalCmd returns the journal command
func JournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the inbound event journal",
	}
	cmd.AddCommand(journalDumpCmd())
	return cmd
}

func journalDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every journaled event as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = config.Load().JournalDir
			}
			if dir == "" {
				return fmt.Errorf("no journal directory (set --dir or MC_JOURNAL_DIR)")
			}
			outcome, _ := cmd.Flags().GetString("outcome")

			files, err := journal.Files(dir, "events")
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, path := range files {
				err := journal.Read(path, func(e journal.Entry) error {
					if outcome != "" && e.Outcome != outcome {
						return nil
					}
					return enc.Encode(e)
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Journal directory (defaults to MC_JOURNAL_DIR)")
	cmd.Flags().String("outcome", "", "Only entries with this outcome (created, rejected, ...)")
	return cmd
}
