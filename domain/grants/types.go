package grants

import (
	"fmt"
	"math"
	"strings"

	"grantlens/domain/core"
)

// ProgramType classifies a grant into the fixed program vocabulary
type ProgramType string

const (
	ProgramMaternalHealth    ProgramType = "maternal_health"
	ProgramMentalHealth      ProgramType = "mental_health"
	ProgramHomeVisiting      ProgramType = "home_visiting"
	ProgramSpecialNeeds      ProgramType = "special_needs"
	ProgramTrainingEducation ProgramType = "training_education"
	ProgramEmergencyServices ProgramType = "emergency_services"
	ProgramScreening         ProgramType = "screening"
	ProgramOtherUnknown      ProgramType = "other_unknown"
)

// AllProgramTypes lists every program category in stable order
func AllProgramTypes() []ProgramType {
	return []ProgramType{
		ProgramMaternalHealth,
		ProgramMentalHealth,
		ProgramHomeVisiting,
		ProgramSpecialNeeds,
		ProgramTrainingEducation,
		ProgramEmergencyServices,
		ProgramScreening,
		ProgramOtherUnknown,
	}
}

// IsValid reports whether the program type belongs to the fixed set
func (p ProgramType) IsValid() bool {
	for _, known := range AllProgramTypes() {
		if p == known {
			return true
		}
	}
	return false
}

func (p ProgramType) String() string {
	return string(p)
}

// GranteeClass identifies the kind of organization receiving an award
type GranteeClass string

const (
	ClassStateAgency     GranteeClass = "state_agency"
	ClassNonprofit       GranteeClass = "nonprofit"
	ClassTribalEntity    GranteeClass = "tribal_entity"
	ClassAcademic        GranteeClass = "academic"
	ClassLocalGovernment GranteeClass = "local_government"
	ClassUnknown         GranteeClass = "unknown"
)

// IsValid reports whether the grantee class belongs to the fixed set
func (c GranteeClass) IsValid() bool {
	switch c {
	case ClassStateAgency, ClassNonprofit, ClassTribalEntity,
		ClassAcademic, ClassLocalGovernment, ClassUnknown:
		return true
	}
	return false
}

func (c GranteeClass) String() string {
	return string(c)
}

// GrantRecord is one normalized funding award.
// INVARIANTS:
// - Amount is finite and >= 0
// - Program belongs to the fixed program vocabulary
// - FiscalYear falls in the plausible reporting window
// Records are immutable once constructed.
type GrantRecord struct {
	Grantee      string          `json:"grantee"`
	Program      ProgramType     `json:"program"`
	Amount       float64         `json:"amount"`
	FiscalYear   core.FiscalYear `json:"fiscal_year"`
	RawGeography string          `json:"raw_geography"`
	Class        GranteeClass    `json:"grantee_class"`
}

// NewGrantRecord validates fields and constructs an immutable record
func NewGrantRecord(grantee string, program ProgramType, amount float64, year core.FiscalYear, rawGeo string, class GranteeClass) (GrantRecord, error) {
	grantee = strings.TrimSpace(grantee)
	if grantee == "" {
		return GrantRecord{}, fmt.Errorf("%w: grantee", core.ErrMissingField)
	}
	if !program.IsValid() {
		return GrantRecord{}, fmt.Errorf("%w: unknown program type %q", core.ErrMalformedRecord, program)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return GrantRecord{}, fmt.Errorf("%w: award amount is not finite", core.ErrMalformedRecord)
	}
	if amount < 0 {
		return GrantRecord{}, fmt.Errorf("%w: award amount %.2f is negative", core.ErrMalformedRecord, amount)
	}
	if !year.IsValid() {
		return GrantRecord{}, fmt.Errorf("%w: fiscal year %d out of range", core.ErrMalformedRecord, year)
	}
	if strings.TrimSpace(rawGeo) == "" {
		return GrantRecord{}, fmt.Errorf("%w: geography", core.ErrMissingField)
	}
	if !class.IsValid() {
		class = ClassUnknown
	}
	return GrantRecord{
		Grantee:      grantee,
		Program:      program,
		Amount:       amount,
		FiscalYear:   year,
		RawGeography: strings.TrimSpace(rawGeo),
		Class:        class,
	}, nil
}
