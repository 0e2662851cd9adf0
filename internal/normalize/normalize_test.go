package normalize

import (
	"testing"
	"time"

	"grantlens/domain/grants"
)

func TestCleanCurrency(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"$1,234,567.89", 1234567.89, false},
		{"1234567", 1234567, false},
		{" $50,000 ", 50000, false},
		{"$0", 0, false},
		{"", 0, true},
		{"$", 0, true},
		{"abc", 0, true},
		{"-500", 0, true},
		{"($1,000)", 0, true},
		{"NaN", 0, true},
	}

	for _, tc := range cases {
		got, err := CleanCurrency(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CleanCurrency(%q) expected error, got %v", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanCurrency(%q) unexpected error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CleanCurrency(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseFiscalYear(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"2021", 2021, false},
		{"FY2021", 2021, false},
		{"FY 2021", 2021, false},
		{"fy21", 2021, false},
		{"2021.0", 2021, false},
		{"98", 1998, false},
		{"", 0, true},
		{"year", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseFiscalYear(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFiscalYear(%q) expected error, got %d", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFiscalYear(%q) unexpected error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFiscalYear(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestCategorizeProgram(t *testing.T) {
	cases := []struct {
		raw    string
		want   grants.ProgramType
		mapped bool
	}{
		{"Maternal and Child Health Services", grants.ProgramMaternalHealth, true},
		{"Behavioral Health Integration", grants.ProgramMentalHealth, true},
		{"Evidence-Based Home Visiting", grants.ProgramHomeVisiting, true},
		{"Children with Special Health Care Needs", grants.ProgramSpecialNeeds, true},
		{"Workforce Training Initiative", grants.ProgramTrainingEducation, true},
		{"Emergency Medical Services for Children", grants.ProgramEmergencyServices, true},
		{"Newborn Screening Follow-up", grants.ProgramScreening, true},
		{"maternal_health", grants.ProgramMaternalHealth, true},
		{"Basket Weaving Outreach", grants.ProgramOtherUnknown, false},
	}

	for _, tc := range cases {
		got, mapped := CategorizeProgram(tc.raw)
		if got != tc.want || mapped != tc.mapped {
			t.Errorf("CategorizeProgram(%q) = %s, %v; want %s, %v", tc.raw, got, mapped, tc.want, tc.mapped)
		}
	}
}

func TestNormalizeGrantsCollectsErrors(t *testing.T) {
	raws := []RawGrant{
		{Row: 1, Grantee: "CA Dept of Public Health", Program: "Maternal Health", Amount: "$100,000", FiscalYear: "2021", Geography: "California", Class: "state agency"},
		{Row: 2, Grantee: "Acme Org", Program: "Mental Health", Amount: "not-money", FiscalYear: "2021", Geography: "Texas", Class: "nonprofit"},
		{Row: 3, Grantee: "Tribal Health Council", Program: "Home Visiting", Amount: "$50,000", FiscalYear: "203X", Geography: "Arizona", Class: "tribal"},
		{Row: 4, Grantee: "NY Agency", Program: "Unclassifiable Program", Amount: "$75,000", FiscalYear: "FY2021", Geography: "New York", Class: ""},
	}

	result := NormalizeGrants(raws)

	if len(result.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result.Records))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Row != 2 || result.Errors[0].Field != "amount" {
		t.Errorf("Unexpected first error: %+v", result.Errors[0])
	}
	if result.Errors[1].Row != 3 || result.Errors[1].Field != "fiscal_year" {
		t.Errorf("Unexpected second error: %+v", result.Errors[1])
	}
	if result.UnmappedCategories != 1 {
		t.Errorf("Expected 1 unmapped category, got %d", result.UnmappedCategories)
	}

	// The unmapped program still lands in other_unknown, keeping its volume
	last := result.Records[1]
	if last.Program != grants.ProgramOtherUnknown {
		t.Errorf("Expected other_unknown program, got %s", last.Program)
	}
	if last.Class != grants.ClassUnknown {
		t.Errorf("Expected unknown class for blank input, got %s", last.Class)
	}
}

func TestNormalizeOutcomesSuppression(t *testing.T) {
	now := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	raws := []RawOutcome{
		{Row: 1, Geography: "CA", Year: 2021, Metric: "infant_mortality_rate", Value: "4.2", ReportedAt: now},
		{Row: 2, Geography: "WY", Year: 2021, Metric: "infant_mortality_rate", Value: "*", ReportedAt: now},
		{Row: 3, Geography: "TX", Year: 2021, Metric: "infant_mortality_rate", Value: "5.0", Suppressed: true, ReportedAt: now},
		{Row: 4, Geography: "NY", Year: 2021, Metric: "unknown_metric", Value: "1.0", ReportedAt: now},
		{Row: 5, Geography: "FL", Year: 2021, Metric: "prenatal_care_pct", Value: "junk", ReportedAt: now},
	}

	result := NormalizeOutcomes(raws)

	if len(result.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(result.Records))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(result.Errors))
	}
	if result.Suppressed != 2 {
		t.Errorf("Expected 2 suppressed, got %d", result.Suppressed)
	}

	// Suppressed values must read as missing, never zero
	for _, rec := range result.Records[1:] {
		if _, ok := rec.Value.Float(); ok {
			t.Errorf("Suppressed value for %s read as usable", rec.RawGeography)
		}
	}
	if v, ok := result.Records[0].Value.Float(); !ok || v != 4.2 {
		t.Errorf("Observed value mangled: %v, %v", v, ok)
	}
}
