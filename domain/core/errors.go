package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrRunNotFound       = fmt.Errorf("%w: run", ErrNotFound)
	ErrGeographyNotFound = fmt.Errorf("%w: geography", ErrNotFound)

	// Input errors
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("required field missing")

	// Resolution errors
	ErrUnresolvableGeography = errors.New("unresolvable geography")
	ErrAmbiguousGeography    = fmt.Errorf("%w: ambiguous match", ErrUnresolvableGeography)

	// Reference errors
	ErrMissingReference = errors.New("missing reference data")

	// Analysis errors
	ErrInsufficientSample  = errors.New("insufficient sample for analysis")
	ErrInvalidAnalysisSpec = errors.New("invalid analysis specification")

	// External service errors
	ErrExternalService = errors.New("external service failure")
)

// Error constructors with context

func NewMalformedRecordError(row int, field string, reason string) error {
	return fmt.Errorf("%w: row %d field %s: %s", ErrMalformedRecord, row, field, reason)
}

func NewUnresolvableGeographyError(raw string) error {
	return fmt.Errorf("%w: %q", ErrUnresolvableGeography, raw)
}

func NewAmbiguousGeographyError(raw string, candidates []string) error {
	return fmt.Errorf("%w: %q matches %v", ErrAmbiguousGeography, raw, candidates)
}

func NewMissingReferenceError(kind string, key string) error {
	return fmt.Errorf("%w: no %s entry for %s", ErrMissingReference, kind, key)
}

func NewInvalidAnalysisSpecError(name string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidAnalysisSpec, name, reason)
}

func NewExternalServiceError(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalService, service, err)
}

// Error checking helpers

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsMalformedRecordError(err error) bool {
	return errors.Is(err, ErrMalformedRecord) || errors.Is(err, ErrMissingField)
}

func IsGeographyError(err error) bool {
	return errors.Is(err, ErrUnresolvableGeography)
}

func IsRecoverableInputError(err error) bool {
	return IsMalformedRecordError(err) || IsGeographyError(err)
}

func IsFatalRunError(err error) bool {
	return errors.Is(err, ErrExternalService) || errors.Is(err, ErrMissingReference)
}
