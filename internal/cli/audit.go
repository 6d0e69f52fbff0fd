package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"missioncontrol/api/internal/app"
	"missioncontrol/api/internal/archive"
	"missioncontrol/api/internal/config"
)

type auditReport struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Consistent  bool            `json:"consistent"`
	Drift       []app.DriftView `json:"drift"`
}

// AuditCmd returns the audit command
func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare recorded team balances with their transaction history",
		Long: `Recompute every team balance from point_transactions and report teams
whose stored balance disagrees. Exits non-zero when drift is found.

Usage:
  mc audit
  mc audit --upload      # also store the report in object storage`,
		RunE: runAudit,
	}
	cmd.Flags().Bool("upload", false, "Upload the JSON report to MINIO_BUCKET")
	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer dataStore.DB().Close()

	drift, err := app.New(cfg, dataStore, app.Deps{}).Audit(ctx)
	if err != nil {
		return err
	}
	report := auditReport{GeneratedAt: time.Now().UTC(), Consistent: len(drift) == 0, Drift: drift}

	if len(drift) == 0 {
		fmt.Printf("%s all team balances match their transactions\n", color.New(color.FgGreen).Sprint("✓"))
	}
	for _, d := range drift {
		fmt.Printf("%s %s recorded=%d computed=%d\n",
			color.New(color.FgRed).Sprint("DRIFT"), d.TeamID, d.Recorded, d.Computed)
	}

	if upload, _ := cmd.Flags().GetBool("upload"); upload {
		uploader, err := archive.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return err
		}
		if uploader == nil {
			return archive.ErrNotConfigured
		}
		key := archive.AuditKey(report.GeneratedAt)
		if err := uploader.PutJSON(ctx, key, report); err != nil {
			return fmt.Errorf("upload audit report: %w", err)
		}
		fmt.Printf("  report: %s/%s\n", cfg.MinioBucket, key)
	}

	if !report.Consistent {
		return fmt.Errorf("%d team(s) with balance drift", len(drift))
	}
	return nil
}
