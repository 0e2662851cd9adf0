package reportfmt

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"grantlens/domain/run"
)

// RenderText renders the run report as an aligned plain-text table for
// terminal consumption
func RenderText(report *run.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Run %s (%s)\n", report.RunID, report.Status))
	if report.FatalError != "" {
		b.WriteString(fmt.Sprintf("FATAL: %s\n", report.FatalError))
	}
	b.WriteString("\n")

	c := report.Counts
	writeTable(&b, []string{"count", "value"}, [][]string{
		{"grant rows in", itoa(c.GrantRowsIn)},
		{"outcome rows in", itoa(c.OutcomeRowsIn)},
		{"malformed grants", itoa(c.MalformedGrants)},
		{"malformed outcomes", itoa(c.MalformedOutcomes)},
		{"unresolved geographies", itoa(c.UnresolvedGeographies)},
		{"ambiguous geographies", itoa(c.AmbiguousGeographies)},
		{"unmapped categories", itoa(c.UnmappedCategories)},
		{"suppressed outcomes", itoa(c.SuppressedOutcomes)},
		{"duplicate outcomes", itoa(c.DuplicateOutcomes)},
		{"merged rows", itoa(c.MergedRows)},
		{"matched rows", itoa(c.MatchedRows)},
		{"unmatched grant rows", itoa(c.UnmatchedGrantRows)},
		{"unmatched outcome rows", itoa(c.UnmatchedOutcomeRows)},
		{"population misses", itoa(c.PopulationMisses)},
	})

	if len(report.Analyses) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(report.Analyses))
		for _, a := range report.Analyses {
			warnings := make([]string, len(a.Warnings))
			for i, w := range a.Warnings {
				warnings[i] = string(w)
			}
			rows = append(rows, []string{
				a.Name, string(a.Kind), string(a.Validity),
				strings.Join(warnings, ","), fmt.Sprintf("%dms", a.ElapsedMs),
			})
		}
		writeTable(&b, []string{"analysis", "kind", "validity", "warnings", "elapsed"}, rows)
	}

	if len(report.Exclusions) > 0 {
		b.WriteString(fmt.Sprintf("\nExclusions (%d total, showing %d):\n",
			report.ExclusionsTotal, len(report.Exclusions)))
		for _, e := range report.Exclusions {
			if e.Row > 0 {
				b.WriteString(fmt.Sprintf("  [%s] row %d: %s\n", e.Stage, e.Row, e.Detail))
			} else {
				b.WriteString(fmt.Sprintf("  [%s] %s\n", e.Stage, e.Detail))
			}
		}
	}

	return b.String()
}

// writeTable writes an aligned table, sizing columns by display width so
// wide runes line up
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	writeLine := func(cells []string) {
		for i, cell := range cells {
			b.WriteString(pad(cell, widths[i]))
			if i < len(cells)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}

	writeLine(header)
	separator := make([]string, len(header))
	for i := range header {
		separator[i] = strings.Repeat("-", widths[i])
	}
	writeLine(separator)
	for _, row := range rows {
		writeLine(row)
	}
}

func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func itoa(v int) string {
	return fmt.Sprintf("%d", v)
}
