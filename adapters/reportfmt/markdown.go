package reportfmt

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"grantlens/domain/analysis"
	"grantlens/domain/run"
)

// RenderMarkdown renders a run brief: the audit counts plus one section
// per analysis with its headline numbers
func RenderMarkdown(report *run.Report, results []analysis.StatisticalResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Run brief %s\n\n", report.RunID))
	b.WriteString(fmt.Sprintf("Status: **%s**", report.Status))
	if d := report.DurationMs(); d > 0 {
		b.WriteString(fmt.Sprintf(" (%dms)", d))
	}
	b.WriteString("\n\n")
	if report.FatalError != "" {
		b.WriteString(fmt.Sprintf("> Fatal: %s\n\n", report.FatalError))
	}

	c := report.Counts
	b.WriteString("## Reconciliation\n\n")
	b.WriteString("| count | value |\n|---|---|\n")
	for _, line := range [][2]string{
		{"grant rows in", itoa(c.GrantRowsIn)},
		{"outcome rows in", itoa(c.OutcomeRowsIn)},
		{"merged rows", itoa(c.MergedRows)},
		{"matched", itoa(c.MatchedRows)},
		{"grants without outcomes", itoa(c.UnmatchedOutcomeRows)},
		{"outcomes without grants", itoa(c.UnmatchedGrantRows)},
		{"malformed inputs rejected", itoa(c.MalformedGrants + c.MalformedOutcomes)},
		{"unresolved geographies", itoa(c.UnresolvedGeographies + c.AmbiguousGeographies)},
		{"suppressed outcome values", itoa(c.SuppressedOutcomes)},
	} {
		b.WriteString(fmt.Sprintf("| %s | %s |\n", line[0], line[1]))
	}
	b.WriteString("\n")

	if len(report.TierBreakpoints) > 0 {
		b.WriteString(fmt.Sprintf("Funding tier breakpoints: %v\n\n", report.TierBreakpoints))
	}

	if len(results) > 0 {
		b.WriteString("## Analyses\n\n")
		for _, r := range results {
			b.WriteString(renderResult(r))
		}
	}
	return b.String()
}

func renderResult(r analysis.StatisticalResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("### %s (%s)\n\n", r.Name, r.Kind))

	if r.Validity != analysis.ValidityOK {
		b.WriteString(fmt.Sprintf("Not interpretable: `%s`", r.Validity))
		if r.Error != "" {
			b.WriteString(fmt.Sprintf(" (%s)", r.Error))
		}
		b.WriteString("\n\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("n=%d, excluded=%d", r.SampleSize, r.ExcludedRows))
	if r.Statistic != nil {
		b.WriteString(fmt.Sprintf(", statistic=%.4f", *r.Statistic))
	}
	if r.PValue != nil {
		b.WriteString(fmt.Sprintf(", p=%.4g", *r.PValue))
	}
	if r.QValue != nil {
		b.WriteString(fmt.Sprintf(", q=%.4g", *r.QValue))
	}
	if r.EffectSize != nil {
		b.WriteString(fmt.Sprintf(", effect=%.4f", *r.EffectSize))
		if r.EffectLabel != "" {
			b.WriteString(fmt.Sprintf(" (%s)", r.EffectLabel))
		}
	}
	b.WriteString("\n\n")

	if len(r.Coefficients) > 0 {
		b.WriteString("| term | estimate | std err | t | p |\n|---|---|---|---|---|\n")
		for _, coef := range r.Coefficients {
			b.WriteString(fmt.Sprintf("| %s | %.6g | %.6g | %.3f | %.4g |\n",
				coef.Name, coef.Estimate, coef.StdErr, coef.TStat, coef.PValue))
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("| group | n | mean | sd |\n|---|---|---|---|\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f |\n", g.Group, g.N, g.Mean, g.StdDev))
		}
		b.WriteString("\n")
	}
	if len(r.Clusters) > 0 {
		for _, cluster := range r.Clusters {
			b.WriteString(fmt.Sprintf("- cluster %d: %d geographies\n", cluster.Cluster, cluster.Size))
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		warnings := make([]string, len(r.Warnings))
		for i, w := range r.Warnings {
			warnings[i] = string(w)
		}
		b.WriteString(fmt.Sprintf("Warnings: %s\n\n", strings.Join(warnings, ", ")))
	}
	return b.String()
}

// RenderHTML converts the markdown brief into a standalone HTML artifact
func RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}
