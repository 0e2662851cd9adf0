package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID      ID
	AnalysisID ID
)

// NewRunID creates a new run identifier
func NewRunID() RunID {
	return RunID(NewID())
}

// NewAnalysisID creates a new analysis identifier
func NewAnalysisID() AnalysisID {
	return AnalysisID(NewID())
}

func (id RunID) String() string      { return ID(id).String() }
func (id RunID) IsEmpty() bool       { return ID(id).IsEmpty() }
func (id AnalysisID) String() string { return ID(id).String() }
func (id AnalysisID) IsEmpty() bool  { return ID(id).IsEmpty() }

// ParseRunID validates and converts a string into a RunID
func ParseRunID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("run id is empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run id %q is not a valid uuid: %w", s, err)
	}
	return RunID(s), nil
}
