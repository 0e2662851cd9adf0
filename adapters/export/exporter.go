package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"grantlens/adapters/reportfmt"
	"grantlens/adapters/workbook"
	"grantlens/domain/analysis"
	"grantlens/domain/outcomes"
	"grantlens/domain/table"
	"grantlens/internal/config"
	"grantlens/ports"
)

// FileExporter writes run artifacts into a directory: the xlsx workbook,
// CSV mirrors of the merged table and results, the JSON run report, and
// the rendered text/markdown (and optionally HTML) briefs.
type FileExporter struct {
	cfg config.ExportConfig
}

// NewFileExporter creates an exporter for the configured output directory
func NewFileExporter(cfg config.ExportConfig) *FileExporter {
	return &FileExporter{cfg: cfg}
}

// Export writes every configured artifact. Any write failure is returned:
// the artifacts are the product of a run, so losing one fails the run.
func (e *FileExporter) Export(ctx context.Context, artifacts ports.RunArtifacts) error {
	dir := filepath.Join(e.cfg.Dir, artifacts.Report.RunID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	if err := e.writeJSONReport(dir, artifacts); err != nil {
		return err
	}

	text := reportfmt.RenderText(artifacts.Report)
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	md := reportfmt.RenderMarkdown(artifacts.Report, artifacts.Results)
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	if e.cfg.WriteHTML {
		if err := os.WriteFile(filepath.Join(dir, "report.html"), reportfmt.RenderHTML(md), 0o644); err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
	}

	if e.cfg.WriteXLSX {
		path := filepath.Join(dir, "artifacts.xlsx")
		if err := workbook.Write(path, artifacts.Report, artifacts.Rows, artifacts.Results); err != nil {
			return err
		}
	}
	if e.cfg.WriteCSV {
		if err := e.writeMergedCSV(filepath.Join(dir, "merged.csv"), artifacts.Rows); err != nil {
			return err
		}
		if err := e.writeResultsCSV(filepath.Join(dir, "results.csv"), artifacts.Results); err != nil {
			return err
		}
	}

	log.Printf("[Export] wrote run artifacts to %s", dir)
	return nil
}

func (e *FileExporter) writeJSONReport(dir string, artifacts ports.RunArtifacts) error {
	data, err := json.MarshalIndent(artifacts.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run_report.json"), data, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

func (e *FileExporter) writeMergedCSV(path string, rows []table.FeatureRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create merged csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"geography", "state", "year", "provenance", "total_funding", "grant_count",
		"population", "per_capita_funding", "funding_tier"}
	for _, m := range outcomes.AllMetrics() {
		header = append(header, string(m))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Geography.Name,
			row.Geography.StateCode,
			strconv.Itoa(row.Year.Int()),
			string(row.Provenance),
			formatFloat(row.Grants.TotalFunding),
			strconv.Itoa(row.Grants.GrantCount),
			formatOptional(row.Population),
			formatOptional(row.PerCapitaFunding),
			row.FundingTier,
		}
		for _, m := range outcomes.AllMetrics() {
			if v, ok := row.Outcome(m); ok {
				record = append(record, formatFloat(v))
			} else {
				// Missing and suppressed values export as empty cells
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (e *FileExporter) writeResultsCSV(path string, results []analysis.StatisticalResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"name", "kind", "validity", "n", "excluded",
		"statistic", "p_value", "q_value", "effect_size", "effect_label"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Name, string(r.Kind), string(r.Validity),
			strconv.Itoa(r.SampleSize), strconv.Itoa(r.ExcludedRows),
			formatOptional(r.Statistic), formatOptional(r.PValue),
			formatOptional(r.QValue), formatOptional(r.EffectSize), r.EffectLabel,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
