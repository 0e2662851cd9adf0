package normalize

import (
	"fmt"
	"strings"

	"grantlens/domain/core"
	"grantlens/domain/grants"
)

// RawGrant is one unparsed grant row as read from the extract
type RawGrant struct {
	Row        int
	Grantee    string
	Program    string
	Amount     string
	FiscalYear string
	Geography  string
	Class      string
}

// RecordError identifies one rejected input row and the offending field
type RecordError struct {
	Row   int
	Field string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("row %d, field %s: %v", e.Row, e.Field, e.Err)
}

// programKeywords maps description keywords onto the program vocabulary.
// Checked in order; first hit wins.
var programKeywords = []struct {
	program  grants.ProgramType
	keywords []string
}{
	{grants.ProgramMentalHealth, []string{"mental", "behavioral", "psych", "depression"}},
	{grants.ProgramHomeVisiting, []string{"home visit", "home-visit", "visiting"}},
	{grants.ProgramSpecialNeeds, []string{"special", "cshcn", "disabilit"}},
	{grants.ProgramTrainingEducation, []string{"training", "education", "workforce", "capacity"}},
	{grants.ProgramEmergencyServices, []string{"emergency", "ems", "crisis"}},
	{grants.ProgramScreening, []string{"screen"}},
	{grants.ProgramMaternalHealth, []string{"maternal", "mother", "pregnan", "prenatal", "perinatal", "obstetric", "title v", "mch"}},
}

// CategorizeProgram maps free-text program descriptions onto the fixed
// vocabulary. Unrecognized text maps to other_unknown rather than failing,
// so no award volume is dropped; the second return reports whether the
// fallback was taken.
func CategorizeProgram(raw string) (grants.ProgramType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return grants.ProgramOtherUnknown, false
	}
	if p := grants.ProgramType(strings.ReplaceAll(s, " ", "_")); p.IsValid() {
		return p, true
	}
	for _, entry := range programKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				return entry.program, true
			}
		}
	}
	return grants.ProgramOtherUnknown, false
}

// classifyGrantee maps free-text organization descriptions onto GranteeClass
func classifyGrantee(raw string) grants.GranteeClass {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return grants.ClassUnknown
	}
	if c := grants.GranteeClass(strings.ReplaceAll(s, " ", "_")); c.IsValid() {
		return c
	}
	switch {
	case strings.Contains(s, "tribal") || strings.Contains(s, "tribe"):
		return grants.ClassTribalEntity
	case strings.Contains(s, "university") || strings.Contains(s, "college") || strings.Contains(s, "academic"):
		return grants.ClassAcademic
	case strings.Contains(s, "county") || strings.Contains(s, "city") || strings.Contains(s, "local"):
		return grants.ClassLocalGovernment
	case strings.Contains(s, "state") || strings.Contains(s, "department of health"):
		return grants.ClassStateAgency
	case strings.Contains(s, "nonprofit") || strings.Contains(s, "non-profit") || strings.Contains(s, "501"):
		return grants.ClassNonprofit
	}
	return grants.ClassUnknown
}

// GrantResult carries the batch output of grant normalization
type GrantResult struct {
	Records            []grants.GrantRecord
	Errors             []RecordError
	UnmappedCategories int
}

// NormalizeGrants parses raw grant rows into canonical records. Malformed
// rows are collected, never aborting the batch.
func NormalizeGrants(raws []RawGrant) GrantResult {
	result := GrantResult{
		Records: make([]grants.GrantRecord, 0, len(raws)),
	}

	for _, raw := range raws {
		amount, err := CleanCurrency(raw.Amount)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "amount", Err: err})
			continue
		}

		year, err := ParseFiscalYear(raw.FiscalYear)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "fiscal_year", Err: err})
			continue
		}

		program, mapped := CategorizeProgram(raw.Program)
		if !mapped {
			result.UnmappedCategories++
		}

		record, err := grants.NewGrantRecord(
			raw.Grantee,
			program,
			amount,
			core.FiscalYear(year),
			raw.Geography,
			classifyGrantee(raw.Class),
		)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: rejectedField(err), Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result
}

// rejectedField guesses the offending field from a constructor error
func rejectedField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "grantee"):
		return "grantee"
	case strings.Contains(msg, "year"):
		return "fiscal_year"
	case strings.Contains(msg, "amount"):
		return "amount"
	case strings.Contains(msg, "geography"):
		return "geography"
	}
	return "record"
}
