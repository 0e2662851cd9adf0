package geo

import (
	"fmt"
	"strings"
)

// CanonicalGeography is the resolved identity of a place. StateFIPS is the
// two-digit federal code and always present; CountyFIPS is present only for
// county-level resolutions.
type CanonicalGeography struct {
	StateFIPS  string `json:"state_fips"`
	StateCode  string `json:"state_code"`
	CountyFIPS string `json:"county_fips,omitempty"`
	Name       string `json:"name"`
}

// Key returns the join key for this geography
func (g CanonicalGeography) Key() string {
	if g.CountyFIPS != "" {
		return g.StateFIPS + "-" + g.CountyFIPS
	}
	return g.StateFIPS
}

// IsZero reports whether the geography is unset
func (g CanonicalGeography) IsZero() bool {
	return g.StateFIPS == ""
}

func (g CanonicalGeography) String() string {
	if g.CountyFIPS != "" {
		return fmt.Sprintf("%s (%s, county %s)", g.Name, g.StateCode, g.CountyFIPS)
	}
	return fmt.Sprintf("%s (%s)", g.Name, g.StateCode)
}

// MatchMethod records how a raw string was resolved
type MatchMethod string

const (
	MatchExact        MatchMethod = "exact"
	MatchAbbreviation MatchMethod = "abbreviation"
	MatchAlias        MatchMethod = "alias"
	MatchFuzzy        MatchMethod = "fuzzy"
)

// ResolutionStatus tags the outcome of a resolution attempt
type ResolutionStatus string

const (
	StatusResolved   ResolutionStatus = "resolved"
	StatusAmbiguous  ResolutionStatus = "ambiguous"
	StatusUnresolved ResolutionStatus = "unresolved"
)

// Resolution is the tagged outcome of resolving one raw geography string.
// Downstream stages branch on Status explicitly instead of trusting a
// best-effort guess.
type Resolution struct {
	Status     ResolutionStatus   `json:"status"`
	Geography  CanonicalGeography `json:"geography,omitempty"`
	Method     MatchMethod        `json:"method,omitempty"`
	Candidates []string           `json:"candidates,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// Resolved constructs a successful resolution
func Resolved(g CanonicalGeography, method MatchMethod) Resolution {
	return Resolution{Status: StatusResolved, Geography: g, Method: method}
}

// Ambiguous constructs a resolution that failed on multiple equal candidates
func Ambiguous(candidates []string) Resolution {
	return Resolution{
		Status:     StatusAmbiguous,
		Candidates: candidates,
		Reason:     fmt.Sprintf("ambiguous between %s", strings.Join(candidates, ", ")),
	}
}

// Unresolved constructs a resolution that found no acceptable candidate
func Unresolved(reason string) Resolution {
	return Resolution{Status: StatusUnresolved, Reason: reason}
}

// IsResolved reports whether the resolution produced a canonical geography
func (r Resolution) IsResolved() bool {
	return r.Status == StatusResolved
}
