package workbook

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"grantlens/domain/analysis"
	"grantlens/domain/outcomes"
	"grantlens/domain/run"
	"grantlens/domain/table"
)

// Sheet names in the exported workbook
const (
	SheetMerged   = "Merged"
	SheetFeatures = "Features"
	SheetResults  = "Results"
	SheetAudit    = "Audit"
)

// Write renders run artifacts into one xlsx workbook with the merged
// table, the derived features, the statistical results, and the audit
// counts on separate sheets.
func Write(path string, report *run.Report, rows []table.FeatureRow, results []analysis.StatisticalResult) error {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := writeMergedSheet(f, rows); err != nil {
		return err
	}
	if err := writeFeaturesSheet(f, rows); err != nil {
		return err
	}
	if err := writeResultsSheet(f, results); err != nil {
		return err
	}
	if err := writeAuditSheet(f, report); err != nil {
		return err
	}

	// The default sheet is replaced by Merged
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetMerged); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	log.Printf("[Workbook] wrote %s in %v", path, time.Since(start))
	return nil
}

func writeMergedSheet(f *excelize.File, rows []table.FeatureRow) error {
	if _, err := f.NewSheet(SheetMerged); err != nil {
		return err
	}

	header := []interface{}{"geography", "state", "year", "provenance", "total_funding", "grant_count"}
	metrics := presentMetrics(rows)
	for _, m := range metrics {
		header = append(header, string(m))
	}
	if err := writeRow(f, SheetMerged, 1, header); err != nil {
		return err
	}

	for i, row := range rows {
		cells := []interface{}{
			row.Geography.Name, row.Geography.StateCode, row.Year.Int(),
			string(row.Provenance), row.Grants.TotalFunding, row.Grants.GrantCount,
		}
		for _, m := range metrics {
			if v, ok := row.Outcome(m); ok {
				cells = append(cells, v)
			} else {
				// Suppressed or absent metrics export as blank, never zero
				cells = append(cells, nil)
			}
		}
		if err := writeRow(f, SheetMerged, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeFeaturesSheet(f *excelize.File, rows []table.FeatureRow) error {
	if _, err := f.NewSheet(SheetFeatures); err != nil {
		return err
	}

	header := []interface{}{"geography", "year", "population", "per_capita_funding", "funding_tier", "outlier_flags"}
	if err := writeRow(f, SheetFeatures, 1, header); err != nil {
		return err
	}

	for i, row := range rows {
		cells := []interface{}{row.Geography.Name, row.Year.Int()}
		if row.Population != nil {
			cells = append(cells, *row.Population)
		} else {
			cells = append(cells, nil)
		}
		if row.PerCapitaFunding != nil {
			cells = append(cells, *row.PerCapitaFunding)
		} else {
			cells = append(cells, nil)
		}
		cells = append(cells, row.FundingTier, joinFlags(row.OutlierFlags))
		if err := writeRow(f, SheetFeatures, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeResultsSheet(f *excelize.File, results []analysis.StatisticalResult) error {
	if _, err := f.NewSheet(SheetResults); err != nil {
		return err
	}

	header := []interface{}{
		"name", "kind", "validity", "n", "excluded",
		"statistic", "p_value", "q_value", "effect_size", "effect_label", "warnings",
	}
	if err := writeRow(f, SheetResults, 1, header); err != nil {
		return err
	}

	for i, r := range results {
		cells := []interface{}{
			r.Name, string(r.Kind), string(r.Validity), r.SampleSize, r.ExcludedRows,
			deref(r.Statistic), deref(r.PValue), deref(r.QValue), deref(r.EffectSize),
			r.EffectLabel, joinWarnings(r.Warnings),
		}
		if err := writeRow(f, SheetResults, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeAuditSheet(f *excelize.File, report *run.Report) error {
	if _, err := f.NewSheet(SheetAudit); err != nil {
		return err
	}

	c := report.Counts
	lines := [][]interface{}{
		{"run_id", report.RunID.String()},
		{"status", string(report.Status)},
		{"grant_rows_in", c.GrantRowsIn},
		{"outcome_rows_in", c.OutcomeRowsIn},
		{"malformed_grants", c.MalformedGrants},
		{"malformed_outcomes", c.MalformedOutcomes},
		{"unresolved_geographies", c.UnresolvedGeographies},
		{"ambiguous_geographies", c.AmbiguousGeographies},
		{"unmapped_categories", c.UnmappedCategories},
		{"suppressed_outcomes", c.SuppressedOutcomes},
		{"duplicate_outcomes", c.DuplicateOutcomes},
		{"merged_rows", c.MergedRows},
		{"matched_rows", c.MatchedRows},
		{"unmatched_grant_rows", c.UnmatchedGrantRows},
		{"unmatched_outcome_rows", c.UnmatchedOutcomeRows},
		{"population_misses", c.PopulationMisses},
		{"exclusions_total", report.ExclusionsTotal},
	}
	for i, line := range lines {
		if err := writeRow(f, SheetAudit, i+1, line); err != nil {
			return err
		}
	}
	return nil
}

// presentMetrics lists the metrics that occur anywhere in the table, in
// the canonical metric order
func presentMetrics(rows []table.FeatureRow) []outcomes.Metric {
	seen := make(map[outcomes.Metric]bool)
	for _, row := range rows {
		for m := range row.Outcomes {
			seen[m] = true
		}
	}
	var present []outcomes.Metric
	for _, m := range outcomes.AllMetrics() {
		if seen[m] {
			present = append(present, m)
		}
	}
	return present
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []interface{}) error {
	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func joinFlags(flags []string) string {
	sorted := append([]string(nil), flags...)
	sort.Strings(sorted)
	out := ""
	for i, flag := range sorted {
		if i > 0 {
			out += ","
		}
		out += flag
	}
	return out
}

func joinWarnings(warnings []analysis.WarningCode) string {
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += ","
		}
		out += string(w)
	}
	return out
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
