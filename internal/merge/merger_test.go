package merge

import (
	"testing"
	"time"

	"grantlens/domain/core"
	"grantlens/domain/geo"
	"grantlens/domain/grants"
	"grantlens/domain/outcomes"
	"grantlens/domain/table"
)

var (
	california = geo.CanonicalGeography{StateFIPS: "06", StateCode: "CA", Name: "California"}
	texas      = geo.CanonicalGeography{StateFIPS: "48", StateCode: "TX", Name: "Texas"}
	newYork    = geo.CanonicalGeography{StateFIPS: "36", StateCode: "NY", Name: "New York"}
)

func grant(t *testing.T, g geo.CanonicalGeography, year int, amount float64) LocatedGrant {
	t.Helper()
	record, err := grants.NewGrantRecord("Test Grantee", grants.ProgramMaternalHealth,
		amount, core.FiscalYear(year), g.Name, grants.ClassStateAgency)
	if err != nil {
		t.Fatalf("NewGrantRecord: %v", err)
	}
	return LocatedGrant{Grant: record, Geography: g}
}

func outcome(t *testing.T, g geo.CanonicalGeography, year int, metric outcomes.Metric, value float64, reported time.Time) LocatedOutcome {
	t.Helper()
	mv, err := outcomes.NewMetricValue(value, core.NewTimestamp(reported))
	if err != nil {
		t.Fatalf("NewMetricValue: %v", err)
	}
	record, err := outcomes.NewOutcomeRecord(g.Name, core.FiscalYear(year), metric, mv)
	if err != nil {
		t.Fatalf("NewOutcomeRecord: %v", err)
	}
	return LocatedOutcome{Outcome: record, Geography: g}
}

// TestMergeOuterJoin exercises the three join outcomes: CA has both sides,
// TX has grants without outcome data, NY has outcome data without grants.
func TestMergeOuterJoin(t *testing.T) {
	reported := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	grantRows := []LocatedGrant{
		grant(t, california, 2021, 100000),
		grant(t, california, 2021, 50000),
		grant(t, texas, 2021, 200000),
	}
	outcomeRows := []LocatedOutcome{
		outcome(t, california, 2021, outcomes.MetricInfantMortality, 4.2, reported),
		outcome(t, newYork, 2021, outcomes.MetricInfantMortality, 5.1, reported),
	}

	rows, report := Merge(grantRows, outcomeRows)

	if len(rows) != 3 {
		t.Fatalf("expected 3 merged rows, got %d", len(rows))
	}
	if report.MatchedRows != 1 || report.UnmatchedOutcomeRows != 1 || report.UnmatchedGrantRows != 1 {
		t.Errorf("unexpected report buckets: %+v", report)
	}
	if !report.Conserved() {
		t.Errorf("report not conserved: %+v", report)
	}

	byState := make(map[string]table.MergedRow)
	for _, row := range rows {
		byState[row.Geography.StateCode] = row
	}

	ca := byState["CA"]
	if ca.Grants.TotalFunding != 150000 {
		t.Errorf("CA funding = %v, want 150000", ca.Grants.TotalFunding)
	}
	if ca.Grants.GrantCount != 2 {
		t.Errorf("CA grant count = %d, want 2", ca.Grants.GrantCount)
	}
	if v, ok := ca.Outcome(outcomes.MetricInfantMortality); !ok || v != 4.2 {
		t.Errorf("CA mortality = %v (%v), want 4.2", v, ok)
	}
	if ca.Provenance != table.ProvenanceMatched {
		t.Errorf("CA provenance = %s", ca.Provenance)
	}

	tx := byState["TX"]
	if tx.Grants.TotalFunding != 200000 {
		t.Errorf("TX funding = %v, want 200000", tx.Grants.TotalFunding)
	}
	if _, ok := tx.Outcome(outcomes.MetricInfantMortality); ok {
		t.Error("TX mortality should be missing")
	}
	if tx.Provenance != table.ProvenanceGrantOnly {
		t.Errorf("TX provenance = %s", tx.Provenance)
	}

	// Absence of a grant record is a true zero, not missing
	ny := byState["NY"]
	if ny.Grants.TotalFunding != 0 || ny.Grants.GrantCount != 0 {
		t.Errorf("NY aggregate = %+v, want explicit zero", ny.Grants)
	}
	if v, ok := ny.Outcome(outcomes.MetricInfantMortality); !ok || v != 5.1 {
		t.Errorf("NY mortality = %v (%v), want 5.1", v, ok)
	}
	if ny.Provenance != table.ProvenanceOutcomeOnly {
		t.Errorf("NY provenance = %s", ny.Provenance)
	}
}

func TestMergeDuplicateOutcomeLatestWins(t *testing.T) {
	early := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)
	outcomeRows := []LocatedOutcome{
		outcome(t, california, 2021, outcomes.MetricInfantMortality, 4.0, late),
		outcome(t, california, 2021, outcomes.MetricInfantMortality, 9.9, early),
	}

	rows, report := Merge(nil, outcomeRows)

	if report.DuplicateOutcomes != 1 {
		t.Errorf("DuplicateOutcomes = %d, want 1", report.DuplicateOutcomes)
	}
	if v, _ := rows[0].Outcome(outcomes.MetricInfantMortality); v != 4.0 {
		t.Errorf("kept value = %v, want latest-reported 4.0", v)
	}
	if len(rows[0].Flags) == 0 || rows[0].Flags[0] != "duplicate_outcome" {
		t.Errorf("expected duplicate_outcome flag, got %v", rows[0].Flags)
	}
}

// Equal timestamps fall back to later input position, so a fixed input
// order always merges identically.
func TestMergeDuplicateTieBreakByPosition(t *testing.T) {
	reported := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	outcomeRows := []LocatedOutcome{
		outcome(t, california, 2021, outcomes.MetricInfantMortality, 1.0, reported),
		outcome(t, california, 2021, outcomes.MetricInfantMortality, 2.0, reported),
	}

	rows, _ := Merge(nil, outcomeRows)
	if v, _ := rows[0].Outcome(outcomes.MetricInfantMortality); v != 2.0 {
		t.Errorf("kept value = %v, want later-position 2.0", v)
	}
}

func TestMergeSuppressedValueStaysMissing(t *testing.T) {
	suppressed := outcomes.NewSuppressedValue(core.NewTimestamp(time.Now()))
	record, err := outcomes.NewOutcomeRecord("Texas", 2021, outcomes.MetricMaternalMortality, suppressed)
	if err != nil {
		t.Fatalf("NewOutcomeRecord: %v", err)
	}

	rows, _ := Merge(nil, []LocatedOutcome{{Outcome: record, Geography: texas}})
	if _, ok := rows[0].Outcome(outcomes.MetricMaternalMortality); ok {
		t.Error("suppressed value must not be usable")
	}
	if _, present := rows[0].Outcomes[outcomes.MetricMaternalMortality]; !present {
		t.Error("suppressed value must stay recorded as explicit missing")
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	rows, report := Merge(nil, nil)
	if len(rows) != 0 || report.MergedRows != 0 {
		t.Errorf("empty merge produced rows: %d", len(rows))
	}
	if !report.Conserved() {
		t.Error("empty report should be conserved")
	}
}

func TestMergeRowsSortedByKey(t *testing.T) {
	grantRows := []LocatedGrant{
		grant(t, texas, 2021, 10),
		grant(t, california, 2021, 10),
		grant(t, california, 2020, 10),
	}
	rows, _ := Merge(grantRows, nil)

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1].Key(), rows[i].Key()
		if prev.GeoKey > cur.GeoKey || (prev.GeoKey == cur.GeoKey && prev.Year > cur.Year) {
			t.Errorf("rows out of order: %v before %v", prev, cur)
		}
	}
}
