package inference

import (
	"grantlens/domain/table"
)

// LowNThreshold marks sample sizes small enough to warrant a warning even
// when the procedure itself can run
const LowNThreshold = 30

// HighMissingShare is the excluded-row share above which a result carries
// the high-missingness warning
const HighMissingShare = 0.30

// numericCase is one row that survived listwise deletion for a numeric
// variable set
type numericCase struct {
	key    string
	values []float64
}

// extractNumeric pulls the named variables out of the feature table with
// listwise deletion: a row missing any variable is excluded whole, and the
// excluded count is reported for transparency.
func extractNumeric(rows []table.FeatureRow, variables []string) (cases []numericCase, excluded int) {
	for _, row := range rows {
		values := make([]float64, len(variables))
		ok := true
		for i, name := range variables {
			v, present := row.Variable(name)
			if !present {
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			excluded++
			continue
		}
		cases = append(cases, numericCase{key: row.Key().String(), values: values})
	}
	return cases, excluded
}

// groupedCase is one row that survived listwise deletion for a grouped
// comparison
type groupedCase struct {
	group string
	value float64
}

// extractGrouped pulls (group, outcome) pairs with listwise deletion over
// both the grouping variable and the outcome
func extractGrouped(rows []table.FeatureRow, groupBy, outcome string) (cases []groupedCase, excluded int) {
	for _, row := range rows {
		group, ok := row.Categorical(groupBy)
		if !ok {
			excluded++
			continue
		}
		value, ok := row.Variable(outcome)
		if !ok {
			excluded++
			continue
		}
		cases = append(cases, groupedCase{group: group, value: value})
	}
	return cases, excluded
}

// column extracts one variable position from extracted cases
func column(cases []numericCase, idx int) []float64 {
	out := make([]float64, len(cases))
	for i, c := range cases {
		out[i] = c.values[idx]
	}
	return out
}

// hasVariance reports whether values are not all identical
func hasVariance(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return true
		}
	}
	return false
}
