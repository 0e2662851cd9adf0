package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"grantlens/adapters/postgres"
	"grantlens/adapters/reportfmt"
	"grantlens/domain/core"
	"grantlens/internal/config"
)

var (
	reportRunID  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render a stored run report",
	Long:  `Report loads a persisted run from postgres and renders its audit report.`,
	RunE:  runReportCmd,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run-id", "", "run identifier")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, markdown, or html")

	_ = reportCmd.MarkFlagRequired("run-id")

	rootCmd.AddCommand(reportCmd)
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return fmt.Errorf("report requires DATABASE_URL")
	}

	runID, err := core.ParseRunID(reportRunID)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.NewArtifactStore(db)

	report, err := store.GetReport(cmd.Context(), runID)
	if err != nil {
		return err
	}
	results, err := store.GetResults(cmd.Context(), runID)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "text":
		cmd.Print(reportfmt.RenderText(report))
	case "markdown":
		cmd.Print(reportfmt.RenderMarkdown(report, results))
	case "html":
		cmd.Print(string(reportfmt.RenderHTML(reportfmt.RenderMarkdown(report, results))))
	default:
		return fmt.Errorf("unknown format %q", reportFormat)
	}
	return nil
}
